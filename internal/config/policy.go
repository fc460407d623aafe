package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultPolicyPath is the site configuration read by generate and gate.
const DefaultPolicyPath = "data/site.yaml"

const maxPolicyFileSize = 1024 * 1024 // 1MB

// DeleteAction controls what the offline gate does to the manifest when it
// deletes a page.
type DeleteAction string

const (
	// DeleteRelease forgets the identifier so a later run may regenerate it.
	DeleteRelease DeleteAction = "release"
	// DeleteBlacklist retires the identifier permanently.
	DeleteBlacklist DeleteAction = "blacklist"
)

// Policy is the site-content contract: taxonomy, outline, lexicon and the
// numeric thresholds the quality gate enforces. It is read-only for the
// duration of a run.
type Policy struct {
	// Hubs is the closed set of hub tags
	Hubs []string
	// PageTypes is the closed set of page-type tags
	PageTypes []string
	// DefaultHub replaces a hub the backend invents
	DefaultHub string
	// Outline is the fixed sequence of level-2 headings every page carries
	Outline []string
	// ForbiddenWords is merged with the gate's built-in safety net
	ForbiddenWords []string

	// RequiredFields are the header keys that must be present and non-blank
	RequiredFields []string
	// AllowExtraSections relaxes the outline check from exact match to
	// in-order subsequence
	AllowExtraSections bool
	// BannedPatterns are case-insensitive, multi-line expressions that must
	// not match the body
	BannedPatterns []*regexp.Regexp
	// EnforceHeadingLevels rejects H1 and H4+ headings in the body
	EnforceHeadingLevels bool
	// FAQHeading labels the section whose items are counted
	FAQHeading string
	FAQMin     int
	FAQMax     int
	// MinIntroWords is the minimum word count before the first H2 (0 = off)
	MinIntroWords int
	MinWords      int
	MaxWords      int
	// MinSectionWords applies to every outline section except the FAQ (0 = off)
	MinSectionWords  int
	MinInternalLinks int
	// MaxInternalLinks caps internal links (0 = unbounded)
	MaxInternalLinks int
	// GenericAnchors are placeholder anchor texts that fail the link rule
	GenericAnchors []string
	// MaxSentencesPerParagraph bounds prose paragraphs (0 = off)
	MaxSentencesPerParagraph int
	// OnDelete decides how the manifest treats pages the gate deletes
	OnDelete DeleteAction

	// Warnings collects non-fatal problems found while loading
	Warnings []string
}

// DefaultPolicy returns the built-in policy used when no site file exists
//
// The thresholds match what the generation prompt asks for, so a page that
// follows its instructions passes both the inline and the offline gate.
func DefaultPolicy() *Policy {
	return &Policy{
		Hubs:       []string{"work-career", "money-stress", "burnout-load", "milestones", "social-norms"},
		PageTypes:  []string{"is-it-normal", "red-flags", "myth-vs-reality", "checklist", "explainer"},
		DefaultHub: "social-norms",
		Outline: []string{
			"What this feeling usually means",
			"Common reasons",
			"What makes it worse",
			"What helps (non-advice)",
			"When it might signal a bigger issue",
			"FAQs",
		},
		ForbiddenWords: []string{"diagnose", "diagnosis", "prescribed", "guaranteed"},

		RequiredFields:           []string{"title", "slug", "description", "date", "hub", "page_type"},
		AllowExtraSections:       false,
		EnforceHeadingLevels:     true,
		FAQHeading:               "FAQs",
		FAQMin:                   4,
		FAQMax:                   6,
		MinIntroWords:            0,
		MinWords:                 0,
		MaxWords:                 10000,
		MinSectionWords:          0,
		MinInternalLinks:         4,
		MaxInternalLinks:         0,
		GenericAnchors:           []string{"click here", "here"},
		MaxSentencesPerParagraph: 0,
		OnDelete:                 DeleteRelease,
	}
}

// LoadPolicy reads a site policy file. A missing file yields DefaultPolicy;
// any key absent from the file keeps its default.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		path = DefaultPolicyPath
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat policy file: %w", err)
	}
	if info.Size() > maxPolicyFileSize {
		return nil, fmt.Errorf("policy file %s too large (%d bytes, max %d)", path, info.Size(), maxPolicyFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	p, err := PolicyFromBytes(content)
	if err != nil {
		return nil, fmt.Errorf("loading policy %s: %w", path, err)
	}
	return p, nil
}

// PolicyFromBytes parses YAML policy content over the defaults.
//
// Layout:
//
//	generation:
//	  hubs: [...]
//	  page_types: [...]
//	  default_hub: social-norms
//	  outline_h2: [...]
//	  forbidden_words: [...]
//	gates:
//	  required_frontmatter: [...]
//	  allow_extra_h2: false
//	  banned_regex: [...]
//	  enforce_heading_levels: true
//	  faq_heading: FAQs
//	  faq_min: 4
//	  faq_max: 6
//	  min_intro_words: 0
//	  min_words: 0
//	  max_words: 10000
//	  min_section_words: 0
//	  min_internal_links: 4
//	  max_internal_links: 0
//	  generic_anchors: [click here, here]
//	  max_sentences_per_paragraph: 0
//	  on_delete: release
func PolicyFromBytes(content []byte) (*Policy, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	p := DefaultPolicy()

	p.Hubs = stringsOr(k, "generation.hubs", p.Hubs)
	p.PageTypes = stringsOr(k, "generation.page_types", p.PageTypes)
	p.DefaultHub = stringOr(k, "generation.default_hub", p.DefaultHub)
	p.Outline = stringsOr(k, "generation.outline_h2", p.Outline)
	p.ForbiddenWords = stringsOr(k, "generation.forbidden_words", p.ForbiddenWords)

	p.RequiredFields = stringsOr(k, "gates.required_frontmatter", p.RequiredFields)
	p.AllowExtraSections = boolOr(k, "gates.allow_extra_h2", p.AllowExtraSections)
	p.EnforceHeadingLevels = boolOr(k, "gates.enforce_heading_levels", p.EnforceHeadingLevels)
	p.FAQHeading = stringOr(k, "gates.faq_heading", p.FAQHeading)
	p.FAQMin = intOr(k, "gates.faq_min", p.FAQMin)
	p.FAQMax = intOr(k, "gates.faq_max", p.FAQMax)
	p.MinIntroWords = intOr(k, "gates.min_intro_words", p.MinIntroWords)
	p.MinWords = intOr(k, "gates.min_words", p.MinWords)
	p.MaxWords = intOr(k, "gates.max_words", p.MaxWords)
	p.MinSectionWords = intOr(k, "gates.min_section_words", p.MinSectionWords)
	p.MinInternalLinks = intOr(k, "gates.min_internal_links", p.MinInternalLinks)
	p.MaxInternalLinks = intOr(k, "gates.max_internal_links", p.MaxInternalLinks)
	p.GenericAnchors = stringsOr(k, "gates.generic_anchors", p.GenericAnchors)
	p.MaxSentencesPerParagraph = intOr(k, "gates.max_sentences_per_paragraph", p.MaxSentencesPerParagraph)
	p.OnDelete = DeleteAction(strings.ToLower(stringOr(k, "gates.on_delete", string(p.OnDelete))))

	for _, pat := range k.Strings("gates.banned_regex") {
		if strings.TrimSpace(pat) == "" {
			continue
		}
		re, err := regexp.Compile("(?im)" + pat)
		if err != nil {
			// Invalid patterns are ignored rather than failing the whole gate.
			p.Warnings = append(p.Warnings, fmt.Sprintf("ignoring invalid banned_regex %q: %v", pat, err))
			continue
		}
		p.BannedPatterns = append(p.BannedPatterns, re)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the policy for contradictory thresholds
func (p *Policy) Validate() error {
	for name, v := range map[string]int{
		"faq_min":                     p.FAQMin,
		"faq_max":                     p.FAQMax,
		"min_intro_words":             p.MinIntroWords,
		"min_words":                   p.MinWords,
		"max_words":                   p.MaxWords,
		"min_section_words":           p.MinSectionWords,
		"min_internal_links":          p.MinInternalLinks,
		"max_internal_links":          p.MaxInternalLinks,
		"max_sentences_per_paragraph": p.MaxSentencesPerParagraph,
	} {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative (got %d)", name, v)
		}
	}
	if p.FAQMin > p.FAQMax {
		return fmt.Errorf("faq_min (%d) exceeds faq_max (%d)", p.FAQMin, p.FAQMax)
	}
	if p.MinWords > p.MaxWords {
		return fmt.Errorf("min_words (%d) exceeds max_words (%d)", p.MinWords, p.MaxWords)
	}
	if p.MaxInternalLinks > 0 && p.MinInternalLinks > p.MaxInternalLinks {
		return fmt.Errorf("min_internal_links (%d) exceeds max_internal_links (%d)", p.MinInternalLinks, p.MaxInternalLinks)
	}
	if len(p.Hubs) > 0 && !p.HasHub(p.DefaultHub) {
		return fmt.Errorf("default_hub %q is not one of the hubs %v", p.DefaultHub, p.Hubs)
	}
	switch p.OnDelete {
	case DeleteRelease, DeleteBlacklist:
	default:
		return fmt.Errorf("on_delete must be %q or %q (got %q)", DeleteRelease, DeleteBlacklist, p.OnDelete)
	}
	return nil
}

// HasHub reports whether hub is one of the enumerated hubs
func (p *Policy) HasHub(hub string) bool {
	return slices.Contains(p.Hubs, hub)
}

// HasPageType reports whether pt is one of the enumerated page types
func (p *Policy) HasPageType(pt string) bool {
	return slices.Contains(p.PageTypes, pt)
}

// IsFAQHeading reports whether a level-2 heading labels the FAQ section
func (p *Policy) IsFAQHeading(heading string) bool {
	return strings.EqualFold(strings.TrimSpace(heading), strings.TrimSpace(p.FAQHeading))
}

func stringsOr(k *koanf.Koanf, key string, def []string) []string {
	if !k.Exists(key) {
		return def
	}
	out := []string{}
	for _, s := range k.Strings(key) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringOr(k *koanf.Koanf, key, def string) string {
	if !k.Exists(key) {
		return def
	}
	if s := strings.TrimSpace(k.String(key)); s != "" {
		return s
	}
	return def
}

func intOr(k *koanf.Koanf, key string, def int) int {
	if !k.Exists(key) {
		return def
	}
	return k.Int(key)
}

func boolOr(k *koanf.Koanf, key string, def bool) bool {
	if !k.Exists(key) {
		return def
	}
	return k.Bool(key)
}
