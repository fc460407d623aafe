package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverStructured(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{
			name:  "plain object",
			input: `{"title": "T", "n": 1}`,
			want:  map[string]any{"title": "T", "n": float64(1)},
		},
		{
			name:  "plain array",
			input: `[1, 2, 3]`,
			want:  []any{float64(1), float64(2), float64(3)},
		},
		{
			name:  "json fence",
			input: "```json\n{\"title\":\"T\",\"body_md\":\"x\"}\n```",
			want:  map[string]any{"title": "T", "body_md": "x"},
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\": true}\n```",
			want:  map[string]any{"a": true},
		},
		{
			name:  "unterminated fence",
			input: "```json\n{\"a\": \"b\"}",
			want:  map[string]any{"a": "b"},
		},
		{
			name:  "fence inside prose",
			input: "Here you go:\n```json\n{\"a\": 1}\n```\nHope that helps.",
			want:  map[string]any{"a": float64(1)},
		},
		{
			name:  "object inside prose",
			input: `Sure! {"title": "Is it normal", "tags": ["a", "b"]} Let me know.`,
			want:  map[string]any{"title": "Is it normal", "tags": []any{"a", "b"}},
		},
		{
			name:  "braces inside strings",
			input: `Result: {"body_md": "use {curly} and [square] \"quoted\" }"}`,
			want:  map[string]any{"body_md": `use {curly} and [square] "quoted" }`},
		},
		{
			name:  "skips unbalanced prefix",
			input: `Note {broken and then {"ok": 1}`,
			want:  map[string]any{"ok": float64(1)},
		},
		{
			name:  "object before unrelated fence",
			input: "{\"title\":\"T\"}\n```\nnote\n```",
			want:  map[string]any{"title": "T"},
		},
		{
			name:  "object after markdown fence",
			input: "```markdown\n## Heading\n```\n{\"title\":\"T\"}",
			want:  map[string]any{"title": "T"},
		},
		{
			name:  "object in prose after example fence",
			input: "Example:\n```\n## Heading\n```\nHere is the page: {\"title\":\"T\",\"body_md\":\"x\"}",
			want:  map[string]any{"title": "T", "body_md": "x"},
		},
		{
			name:  "surrounding whitespace",
			input: "\n\n   {\"a\": null}   \n",
			want:  map[string]any{"a": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecoverStructured(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecoverStructuredRejects(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{name: "empty", input: "", reason: "empty response"},
		{name: "whitespace", input: "   \n\t", reason: "empty response"},
		{name: "prose", input: "I'm sorry, I can't help with that.", reason: "no JSON value found"},
		{name: "scalar", input: "42", reason: "no JSON value found"},
		{name: "quoted string", input: `"just a string"`, reason: "no JSON value found"},
		{name: "truncated object", input: `{"title": "T", "body_md": "cut off`, reason: "no JSON value found"},
		{name: "trailing comma", input: `{"a": 1,}`, reason: "no JSON value found"},
		{name: "single quotes", input: `{'a': 1}`, reason: "no JSON value found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecoverStructured(tt.input)
			require.Error(t, err)
			assert.Nil(t, got)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected *ParseError, got %T", err)
			assert.Equal(t, tt.reason, pe.Reason)
		})
	}
}

func TestRecoverObject(t *testing.T) {
	t.Run("prefers object over earlier array", func(t *testing.T) {
		got, err := RecoverObject(`See note [1]: {"title": "T"}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"title": "T"}, got)
	})

	t.Run("array without object rejected", func(t *testing.T) {
		_, err := RecoverObject(`["title", "T"]`)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("fenced object returned unchanged", func(t *testing.T) {
		raw := "```json\n{\"title\":\"Is it normal to cry at work?\",\"summary\":\"S\",\"hub\":\"work-career\",\"page_type\":\"is-it-normal\",\"body_md\":\"## A\\nB\"}\n```"
		got, err := RecoverObject(raw)
		require.NoError(t, err)
		assert.Equal(t, "Is it normal to cry at work?", got["title"])
		assert.Equal(t, "## A\nB", got["body_md"])
		assert.Len(t, got, 5)
	})
}

func TestParseErrorPreviewTruncated(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	_, err := RecoverStructured(string(long))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Len(t, pe.Preview, maxPreview+len("..."))
}

func TestRemoveCodeFences(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"```json\n{}\n```", "{}"},
		{"```js\n[]\n```", "[]"},
		{"```\n{}\n```", "{}"},
		{"`{}`", "{}"},
		{"{}", "{}"},
	}
	for _, tt := range tests {
		if got := removeCodeFences(tt.input); got != tt.want {
			t.Errorf("removeCodeFences(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
