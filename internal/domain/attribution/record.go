// Package attribution captures UTM campaign parameters from page URLs and keeps a
// single canonical attribution record per visitor across page views.
package attribution

import (
	"net/url"
	"strings"
)

// Field is one of the five recognized campaign attributes.
type Field string

const (
	FieldSource   Field = "source"
	FieldMedium   Field = "medium"
	FieldCampaign Field = "campaign"
	FieldTerm     Field = "term"
	FieldContent  Field = "content"
)

// Fields lists the recognized attributes in display order.
var Fields = []Field{FieldSource, FieldMedium, FieldCampaign, FieldTerm, FieldContent}

// QueryParam returns the exact query-string name for the field, e.g. utm_campaign.
func (f Field) QueryParam() string {
	return "utm_" + string(f)
}

// Record maps recognized fields to trimmed, non-empty values. An empty record means
// an organic visit.
type Record map[Field]string

// Eligible reports whether the record carries any campaign attribution.
func (r Record) Eligible() bool {
	return len(r) > 0
}

// Get returns the value for a field, or "" when absent.
func (r Record) Get(f Field) string {
	return r[f]
}

// Raw converts the record to a plain map suitable for JSON encoding or merging.
func (r Record) Raw() map[string]any {
	raw := make(map[string]any, len(r))
	for f, v := range r {
		raw[string(f)] = v
	}
	return raw
}

// Merge returns a new sanitized record where values in override win per field.
func Merge(base, override Record) Record {
	raw := base.Raw()
	for f, v := range override {
		raw[string(f)] = v
	}
	return Sanitize(raw)
}

// Sanitize keeps only recognized fields whose values are strings that are non-empty
// after trimming. Keys may be spelled utm_<field> or <field>; the utm_ spelling wins
// when both are present. Malformed input degrades to an empty record.
func Sanitize(raw map[string]any) Record {
	out := make(Record)
	for _, f := range Fields {
		if v, ok := cleanValue(raw[f.QueryParam()]); ok {
			out[f] = v
			continue
		}
		if v, ok := cleanValue(raw[string(f)]); ok {
			out[f] = v
		}
	}
	return out
}

func cleanValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// FromQuery extracts attribution from a query string. Only the exact utm_ parameter
// names are recognized.
func FromQuery(values url.Values) Record {
	raw := make(map[string]any, len(Fields))
	for _, f := range Fields {
		if v := values.Get(f.QueryParam()); v != "" {
			raw[f.QueryParam()] = v
		}
	}
	return Sanitize(raw)
}
