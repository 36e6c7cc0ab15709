package console

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestRedacted(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		message string
		want    string
	}{
		{"ascii", "wk_live_abcdef", "key: wk_live_abcdef", "key: wk_li..."},
		{"short secret kept", "abcde", "key: abcde", "key: abcde"},
		{"multi-byte", "ñandú-clave", "key: ñandú-clave", "key: ñandú..."},
		{"five runes, more bytes", "ñandú", "key: ñandú", "key: ñandú"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Entry{Message: tt.message, Payload: `{"writeKey":"` + tt.secret + `"}`, Secrets: []string{tt.secret}}
			got := e.Redacted()
			assert.Equal(t, tt.want, got.Message)
			assert.True(t, utf8.ValidString(got.Payload))
			assert.Nil(t, got.Secrets)
			assert.Equal(t, []string{tt.secret}, e.Secrets)
		})
	}
}
