// Package document models a generated page: a frontmatter header block
// delimited by "---" lines followed by a markdown body. It parses pages,
// renders new ones, and stores them one directory per identifier.
package document

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Header field names, in the order they are rendered.
const (
	FieldTitle       = "title"
	FieldSlug        = "slug"
	FieldDescription = "description"
	FieldDate        = "date"
	FieldHub         = "hub"
	FieldPageType    = "page_type"
)

// DateLayout is the format of the date header field.
const DateLayout = "2006-01-02"

var knownFields = []string{FieldTitle, FieldSlug, FieldDescription, FieldDate, FieldHub, FieldPageType}

// Header is the typed view of a document's header block.
type Header struct {
	Title       string
	Slug        string
	Description string
	Date        string
	Hub         string
	PageType    string
	Extra       map[string]string // unknown keys, e.g. url
}

// Fields returns the header as a flat key/value map.
func (h Header) Fields() map[string]string {
	out := make(map[string]string, len(knownFields)+len(h.Extra))
	for k, v := range h.Extra {
		out[k] = v
	}
	out[FieldTitle] = h.Title
	out[FieldSlug] = h.Slug
	out[FieldDescription] = h.Description
	out[FieldDate] = h.Date
	out[FieldHub] = h.Hub
	out[FieldPageType] = h.PageType
	return out
}

// HeaderFromFields builds a typed header from a flat field map.
func HeaderFromFields(fields map[string]string) Header {
	h := Header{
		Title:       fields[FieldTitle],
		Slug:        fields[FieldSlug],
		Description: fields[FieldDescription],
		Date:        fields[FieldDate],
		Hub:         fields[FieldHub],
		PageType:    fields[FieldPageType],
	}
	for k, v := range fields {
		if isKnownField(k) {
			continue
		}
		if h.Extra == nil {
			h.Extra = make(map[string]string)
		}
		h.Extra[k] = v
	}
	return h
}

func isKnownField(k string) bool {
	for _, f := range knownFields {
		if f == k {
			return true
		}
	}
	return false
}

// Document is a parsed page.
type Document struct {
	ID     string            // storage identifier (directory name); empty for candidates
	Header Header            // typed view of Fields
	Fields map[string]string // every header key, stringified; empty if the header is missing or malformed
	Body   string            // markdown after the header block
	Raw    string            // full text as read or rendered

	// HeaderErr is set when a header block was present but could not be decoded.
	HeaderErr error
}

// Parse splits raw into header and body. It never fails: a missing or
// malformed header yields an empty field map, which the required-fields
// rule then reports.
func Parse(id string, raw []byte) *Document {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	doc := &Document{ID: id, Raw: text, Fields: map[string]string{}}

	fm, body, ok := splitFrontmatter(text)
	if !ok {
		doc.Body = text
		return doc
	}
	doc.Body = body

	fields, err := decodeFields(fm)
	if err != nil {
		doc.HeaderErr = err
		return doc
	}
	doc.Fields = fields
	doc.Header = HeaderFromFields(fields)
	return doc
}

// splitFrontmatter returns the header block and the body that follows it.
// ok is false when text does not open with a "---" line or the block is
// never closed.
func splitFrontmatter(text string) (fm, body string, ok bool) {
	const delim = "---"
	first, rest, found := strings.Cut(text, "\n")
	if !found || strings.TrimRight(first, " \t") != delim {
		return "", text, false
	}

	offset := 0
	for offset < len(rest) {
		line, after, hasNewline := strings.Cut(rest[offset:], "\n")
		if strings.TrimRight(line, " \t") == delim {
			return rest[:offset], strings.TrimLeft(after, "\n"), true
		}
		if !hasNewline {
			break
		}
		offset += len(line) + 1
	}
	return "", text, false
}

func decodeFields(fm string) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(fm), &raw); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = stringify(v)
	}
	return fields, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(DateLayout)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(x)
	}
}

// extraKeys returns the header's extra keys in sorted order.
func (h Header) extraKeys() []string {
	keys := make([]string, 0, len(h.Extra))
	for k := range h.Extra {
		if isKnownField(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
