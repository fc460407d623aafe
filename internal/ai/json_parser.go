// Package ai talks to the generative text backend and recovers structured
// payloads from the free text it returns.
package ai

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions for performance.
var (
	// Matches: ```json\n{...}\n```, ```{...}```, ``` json{...}```, etc.
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	// Unterminated fences: the backend ran out of tokens or forgot the closer.
	leadingFenceRegex  = regexp.MustCompile(`(?s)^` + "`" + `{3}[a-zA-Z]*\s*\n?`)
	trailingFenceRegex = regexp.MustCompile(`(?s)\n?` + "`" + `{3}\s*$`)
)

// maxPreview bounds how much of a bad response ends up in a ParseError.
const maxPreview = 300

// RecoverStructured extracts a JSON object or array from backend text.
//
// Strategy sequence:
//  1. Direct strict parse
//  2. Strip code fences and retry
//  3. Parse the first balanced {...} or [...] span that is itself valid JSON,
//     scanning the original text before the fence-stripped one
//
// Every strategy requires well-formed JSON, so prose never succeeds.
func RecoverStructured(text string) (any, error) {
	return recoverJSON(text, "{[")
}

// RecoverObject is RecoverStructured restricted to JSON objects.
func RecoverObject(text string) (map[string]any, error) {
	v, err := recoverJSON(text, "{")
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: "response is not a JSON object", Preview: truncate(text, maxPreview)}
	}
	return obj, nil
}

func recoverJSON(text, opens string) (any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ParseError{Reason: "empty response"}
	}

	// Strategy 1: Direct JSON parse
	if v, ok := strictParse(trimmed, opens); ok {
		return v, nil
	}

	// Strategy 2: Remove code fences and try again
	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if v, ok := strictParse(withoutFences, opens); ok {
			return v, nil
		}
	}

	// Strategy 3: first balanced span that parses on its own. A fenced
	// block that is not the payload must not hide JSON elsewhere in the
	// reply, so the unfenced text is only a fallback.
	if v, ok := firstBalanced(trimmed, opens); ok {
		return v, nil
	}
	if withoutFences != trimmed {
		if v, ok := firstBalanced(withoutFences, opens); ok {
			return v, nil
		}
	}

	return nil, &ParseError{Reason: "no JSON value found", Preview: truncate(trimmed, maxPreview)}
}

func firstBalanced(text, opens string) (any, bool) {
	for _, span := range balancedSpans(text, opens) {
		if v, ok := strictParse(span, opens); ok {
			return v, true
		}
	}
	return nil, false
}

// strictParse accepts only a single complete JSON object or array whose
// opening character is one of opens.
func strictParse(text, opens string) (any, bool) {
	if text == "" || !strings.ContainsRune(opens, rune(text[0])) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}

// removeCodeFences strips markdown code fences from text.
func removeCodeFences(text string) string {
	// First try: fences at start and end of string
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")

	// Then: a fenced block anywhere in the text
	if cleaned == text {
		if m := codeFenceAnyRegex.FindStringSubmatch(text); m != nil {
			cleaned = m[1]
		}
	}

	// Finally: unbalanced leading or trailing markers
	if cleaned == text {
		cleaned = leadingFenceRegex.ReplaceAllString(cleaned, "")
		cleaned = trailingFenceRegex.ReplaceAllString(cleaned, "")
	}

	// Remove single backticks if they wrap the entire content
	if len(cleaned) >= 2 && strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	return strings.TrimSpace(cleaned)
}

// balancedSpans returns, in order of their opening position, every span
// that starts at one of the opens characters and ends where its brackets
// balance. Brackets inside JSON strings are ignored.
func balancedSpans(text, opens string) []string {
	var spans []string
	for start := 0; start < len(text); start++ {
		if !strings.ContainsRune(opens, rune(text[start])) {
			continue
		}
		if end := matchBracket(text, start); end > start {
			spans = append(spans, text[start:end+1])
		}
	}
	return spans
}

// matchBracket returns the index of the bracket closing the one at start,
// or -1 if the span never balances.
func matchBracket(text string, start int) int {
	var stack bytes.Buffer
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack.WriteByte(c)
		case '}', ']':
			n := stack.Len()
			if n == 0 {
				return -1
			}
			open := stack.Bytes()[n-1]
			if (open == '{' && c != '}') || (open == '[' && c != ']') {
				return -1
			}
			stack.Truncate(n - 1)
			if n == 1 {
				return i
			}
		}
	}
	return -1
}

// truncate truncates a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
