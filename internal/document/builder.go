package document

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidHeader is returned by Render for headers that cannot be written.
	ErrInvalidHeader = errors.New("invalid header")

	identifierPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	lineBreaks        = regexp.MustCompile(`\s*[\r\n]+\s*`)
)

// ValidIdentifier reports whether id is a canonical identifier.
func ValidIdentifier(id string) bool {
	return identifierPattern.MatchString(id)
}

// Render assembles a page from typed fields. Every header value is written
// as a double-quoted scalar on its own `key: "value"` line, in a fixed key
// order; newlines inside values are collapsed to single spaces. lead, when
// non-empty, becomes the first paragraph before body.
func Render(h Header, lead, body string) ([]byte, error) {
	h = h.clean()
	if h.Title == "" {
		return nil, fmt.Errorf("%w: empty title", ErrInvalidHeader)
	}
	if !ValidIdentifier(h.Slug) {
		return nil, fmt.Errorf("%w: slug %q is not a canonical identifier", ErrInvalidHeader, h.Slug)
	}

	mapping := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key, value string) {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: value},
		)
	}
	add(FieldTitle, h.Title)
	add(FieldSlug, h.Slug)
	add(FieldDescription, h.Description)
	add(FieldDate, h.Date)
	add(FieldHub, h.Hub)
	add(FieldPageType, h.PageType)
	for _, k := range h.extraKeys() {
		add(k, h.Extra[k])
	}

	var fm bytes.Buffer
	enc := yaml.NewEncoder(&fm)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("---\n")
	out.Write(fm.Bytes())
	out.WriteString("---\n\n")
	if lead = collapse(lead); lead != "" {
		out.WriteString(lead)
		out.WriteString("\n\n")
	}
	out.WriteString(strings.TrimSpace(strings.ReplaceAll(body, "\r\n", "\n")))
	out.WriteString("\n")
	return out.Bytes(), nil
}

func (h Header) clean() Header {
	h.Title = collapse(h.Title)
	h.Slug = collapse(h.Slug)
	h.Description = collapse(h.Description)
	h.Date = collapse(h.Date)
	h.Hub = collapse(h.Hub)
	h.PageType = collapse(h.PageType)
	if len(h.Extra) > 0 {
		extra := make(map[string]string, len(h.Extra))
		for k, v := range h.Extra {
			if k = strings.TrimSpace(k); k != "" {
				extra[k] = collapse(v)
			}
		}
		h.Extra = extra
	}
	return h
}

func collapse(s string) string {
	return strings.TrimSpace(lineBreaks.ReplaceAllString(s, " "))
}
