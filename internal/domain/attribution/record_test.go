package attribution_test

import (
	"net/url"
	"testing"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want attribution.Record
	}{
		{
			name: "trims and drops unknown and empty",
			raw:  map[string]any{"utm_campaign": "  promo  ", "foo": "bar", "utm_term": ""},
			want: attribution.Record{attribution.FieldCampaign: "promo"},
		},
		{
			name: "bare field names",
			raw:  map[string]any{"source": "google", "medium": "cpc"},
			want: attribution.Record{attribution.FieldSource: "google", attribution.FieldMedium: "cpc"},
		},
		{
			name: "utm spelling wins over bare",
			raw:  map[string]any{"utm_source": "newsletter", "source": "google"},
			want: attribution.Record{attribution.FieldSource: "newsletter"},
		},
		{
			name: "blank utm spelling falls back to bare",
			raw:  map[string]any{"utm_source": "   ", "source": "google"},
			want: attribution.Record{attribution.FieldSource: "google"},
		},
		{
			name: "non-string values dropped",
			raw:  map[string]any{"campaign": 42.0, "term": nil, "content": true, "medium": []any{"x"}},
			want: attribution.Record{},
		},
		{
			name: "nil input",
			raw:  nil,
			want: attribution.Record{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attribution.Sanitize(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Sanitize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []map[string]any{
		{"utm_campaign": "  promo  ", "foo": "bar", "utm_term": ""},
		{"source": "google", "utm_source": "bing", "content": 7},
		{"utm_medium": "\temail\n", "term": "shoes", "campaign": "  "},
		{},
	}
	for _, in := range inputs {
		once := attribution.Sanitize(in)
		twice := attribution.Sanitize(once.Raw())
		assert.Equal(t, once, twice)
	}
}

func TestMergeOverrideWinsPerField(t *testing.T) {
	base := attribution.Record{
		attribution.FieldSource:   "google",
		attribution.FieldCampaign: "old",
	}
	override := attribution.Record{attribution.FieldCampaign: "new"}

	got := attribution.Merge(base, override)

	assert.Equal(t, attribution.Record{
		attribution.FieldSource:   "google",
		attribution.FieldCampaign: "new",
	}, got)
	assert.Equal(t, "old", base[attribution.FieldCampaign], "inputs must not be mutated")
}

func TestFromQueryRecognizesOnlyUTMNames(t *testing.T) {
	values, err := url.ParseQuery("utm_source=google&campaign=ignored&utm_term=%20%20&utm_content=hero&ref=x")
	assert.NoError(t, err)

	got := attribution.FromQuery(values)

	assert.Equal(t, attribution.Record{
		attribution.FieldSource:  "google",
		attribution.FieldContent: "hero",
	}, got)
}

func TestRecordEligibility(t *testing.T) {
	assert.False(t, attribution.Record{}.Eligible())
	assert.False(t, attribution.Record(nil).Eligible())
	assert.True(t, attribution.Record{attribution.FieldTerm: "x"}.Eligible())
	assert.Equal(t, "utm_content", attribution.FieldContent.QueryParam())
}
