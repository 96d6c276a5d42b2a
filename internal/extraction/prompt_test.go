package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain object untouched",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "json fence",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "bare fence",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "leading prose",
			in:   "Here is the extracted statement: {\"a\": 1}",
			want: `{"a": 1}`,
		},
		{
			name: "trailing prose",
			in:   "{\"a\": 1}\nLet me know if you need anything else.",
			want: `{"a": 1}`,
		},
		{
			name: "array body",
			in:   "```json\n[{\"a\": 1}]\n```",
			want: `[{"a": 1}]`,
		},
		{
			name: "surrounding whitespace",
			in:   "  \n{\"a\": 1}\n  ",
			want: `{"a": 1}`,
		},
		{
			name: "no JSON at all",
			in:   "sorry, unreadable document",
			want: "sorry, unreadable document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFence(tt.in))
		})
	}
}

func TestBuildStatementPrompt(t *testing.T) {
	ocr := []byte(`{"pages": [{"page": 1, "text": "hello"}]}`)
	prompt := BuildStatementPrompt(ocr)

	assert.Contains(t, prompt, statementInstructions)
	assert.Contains(t, prompt, `"statement_id"`, "prompt must embed the schema")
	assert.Contains(t, prompt, string(ocr))
	assert.Contains(t, prompt, "Return ONLY raw JSON")
}
