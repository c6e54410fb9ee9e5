package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"title":"Lamp"}`, `{"title":"Lamp"}`},
		{"fenced", "```json\n{\"title\":\"Lamp\"}\n```", `{"title":"Lamp"}`},
		{"prose first", "Here you go: {\"a\":{\"b\":1}} hope it helps", `{"a":{"b":1}}`},
		{"braces in strings", `{"notes":"small } mark and \"{quoted\"","x":1}`, `{"notes":"small } mark and \"{quoted\"","x":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON_Failures(t *testing.T) {
	for _, in := range []string{"", "   ", "no object here", `{"title": "cut off`, `{"a": tru}`} {
		_, err := ExtractJSON(in)
		assert.ErrorIs(t, err, ErrMalformedResult, in)
	}
}

func TestCompleteObject(t *testing.T) {
	_, _, ok := completeObject(`{"a":{"b":`)
	assert.False(t, ok)
	start, end, ok := completeObject(`xx{"a":{}}yy`)
	assert.True(t, ok)
	assert.Equal(t, 2, start)
	assert.Equal(t, 10, end)
}
