package generator

import (
	"fmt"
	"strings"

	"github.com/steveyegge/pagefactory/internal/config"
	"github.com/steveyegge/pagefactory/internal/document"
)

// Payload keys the backend must return.
const (
	keyTitle    = "title"
	keySummary  = "summary"
	keyHub      = "hub"
	keyPageType = "page_type"
	keyBody     = "body_md"
)

var payloadKeys = []string{keyTitle, keySummary, keyHub, keyPageType, keyBody}

// Payload is a backend response that passed the schema check.
type Payload struct {
	Title    string
	Summary  string
	Hub      string
	PageType string
	Body     string
}

// SchemaError lists the payload keys that were missing, blank or not strings.
type SchemaError struct {
	Keys []string
}

func (e *SchemaError) Error() string {
	return "payload schema: missing or invalid keys: " + strings.Join(e.Keys, ", ")
}

// DecodePayload checks an untyped payload: every required key must be a
// non-blank string. Nothing else about the value is trusted.
func DecodePayload(obj map[string]any) (Payload, error) {
	values := make(map[string]string, len(payloadKeys))
	var bad []string
	for _, k := range payloadKeys {
		s, ok := obj[k].(string)
		if !ok || strings.TrimSpace(s) == "" {
			bad = append(bad, k)
			continue
		}
		values[k] = s
	}
	if len(bad) > 0 {
		return Payload{}, &SchemaError{Keys: bad}
	}
	return Payload{
		Title:    values[keyTitle],
		Summary:  values[keySummary],
		Hub:      strings.TrimSpace(values[keyHub]),
		PageType: strings.TrimSpace(values[keyPageType]),
		Body:     values[keyBody],
	}, nil
}

// candidate is a rendered page awaiting the inline gate.
type candidate struct {
	raw []byte
	doc *document.Document
}

// buildCandidate renders the page for slug. A hub outside the enumeration
// falls back to the policy default and a page type outside it falls back
// to the one assigned for this title.
func buildCandidate(p Payload, policy *config.Policy, slug, assignedType, date string) (*candidate, error) {
	hub := p.Hub
	if !policy.HasHub(hub) {
		hub = policy.DefaultHub
	}
	pageType := p.PageType
	if !policy.HasPageType(pageType) {
		pageType = assignedType
	}

	header := document.Header{
		Title:       p.Title,
		Slug:        slug,
		Description: p.Summary,
		Date:        date,
		Hub:         hub,
		PageType:    pageType,
	}
	raw, err := document.Render(header, p.Summary, p.Body)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return &candidate{raw: raw, doc: document.Parse(slug, raw)}, nil
}
