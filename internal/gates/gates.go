// Package gates is the page quality gate: one rule engine used inline by
// the generator (cheap subset, before a candidate is accepted) and offline
// by the gate command (every rule, before publish).
//
// Rules are evaluated independently and their failures accumulated rather
// than short-circuited, so one pass yields complete diagnostics.
package gates

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/steveyegge/pagefactory/internal/config"
	"github.com/steveyegge/pagefactory/internal/document"
)

// Rule identifies a gate rule
type Rule string

const (
	RuleRequiredFields   Rule = "required-fields"
	RuleTaxonomy         Rule = "taxonomy"
	RuleIdentifier       Rule = "identifier"
	RuleOutline          Rule = "outline"
	RuleHeadingLevels    Rule = "heading-levels"
	RuleForbiddenLexicon Rule = "forbidden-lexicon"
	RuleForbiddenPattern Rule = "forbidden-patterns"
	RuleFAQCount         Rule = "faq-count"
	RuleIntroLength      Rule = "intro-length"
	RuleWordCount        Rule = "word-count"
	RuleSectionLength    Rule = "section-length"
	RuleInternalLinks    Rule = "internal-links"
	RuleParagraphDensity Rule = "paragraph-density"
)

// Subset selects which rules Evaluate applies
type Subset int

const (
	// SubsetInline is the cheap subset the generator applies to candidates
	SubsetInline Subset = iota
	// SubsetFull is every rule; the offline gate uses it
	SubsetFull
)

func (s Subset) String() string {
	switch s {
	case SubsetInline:
		return "inline"
	case SubsetFull:
		return "full"
	default:
		return "unknown"
	}
}

// SafetyNet is always merged into the policy's forbidden words.
var SafetyNet = []string{
	"as an ai",
	"i am an ai",
	"diagnose",
	"diagnosis",
	"prescribed",
	"guaranteed",
	"legal advice",
	"medical advice",
	"financial advice",
}

// maxListedHits bounds how many lexicon hits a violation names.
const maxListedHits = 8

// Violation is one failed check
type Violation struct {
	Rule   Rule
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

// Result represents the outcome of evaluating one document
type Result struct {
	Passed     bool
	Violations []Violation
}

// Reasons returns the violations as ordered strings
func (r Result) Reasons() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.String())
	}
	return out
}

// Rules returns the distinct rules that failed, in evaluation order
func (r Result) Rules() []Rule {
	var out []Rule
	for _, v := range r.Violations {
		if !slices.Contains(out, v.Rule) {
			out = append(out, v.Rule)
		}
	}
	return out
}

// ValidationError reports a candidate the gate rejected
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	reasons := Result{Violations: e.Violations}.Reasons()
	return fmt.Sprintf("validation failed (%d violation(s)): %s", len(reasons), strings.Join(reasons, "; "))
}

// Err returns a *ValidationError for a failed result and nil otherwise
func (r Result) Err() error {
	if r.Passed {
		return nil
	}
	return &ValidationError{Violations: slices.Clone(r.Violations)}
}

type check struct {
	rule   Rule
	inline bool
	run    func(*input) []string
}

type input struct {
	doc    *document.Document
	policy *config.Policy
	body   *analysis
}

// checks runs in this order; the order is part of the output contract.
var checks = []check{
	{RuleRequiredFields, true, checkRequiredFields},
	{RuleTaxonomy, true, checkTaxonomy},
	{RuleIdentifier, false, checkIdentifier},
	{RuleOutline, true, checkOutline},
	{RuleHeadingLevels, false, checkHeadingLevels},
	{RuleForbiddenLexicon, true, checkForbiddenLexicon},
	{RuleForbiddenPattern, false, checkForbiddenPatterns},
	{RuleFAQCount, false, checkFAQCount},
	{RuleIntroLength, false, checkIntroLength},
	{RuleWordCount, false, checkWordCount},
	{RuleSectionLength, false, checkSectionLength},
	{RuleInternalLinks, true, checkInternalLinks},
	{RuleParagraphDensity, false, checkParagraphDensity},
}

// Evaluate applies the rules of subset to doc. It is a pure function of
// its arguments: every rule runs, and violations come back in a fixed
// order. A nil policy means config.DefaultPolicy.
func Evaluate(doc *document.Document, policy *config.Policy, subset Subset) Result {
	if policy == nil {
		policy = config.DefaultPolicy()
	}
	in := &input{doc: doc, policy: policy, body: analyze(doc.Body)}

	var violations []Violation
	for _, c := range checks {
		if subset == SubsetInline && !c.inline {
			continue
		}
		for _, detail := range c.run(in) {
			violations = append(violations, Violation{Rule: c.rule, Detail: detail})
		}
	}
	return Result{Passed: len(violations) == 0, Violations: violations}
}

func checkRequiredFields(in *input) []string {
	var missing []string
	for _, key := range in.policy.RequiredFields {
		if strings.TrimSpace(in.doc.Fields[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	detail := "missing header fields: " + strings.Join(missing, ", ")
	if in.doc.HeaderErr != nil {
		detail += " (header unreadable)"
	}
	return []string{detail}
}

func checkTaxonomy(in *input) []string {
	var out []string
	hub := strings.TrimSpace(in.doc.Fields[document.FieldHub])
	if hub != "" && len(in.policy.Hubs) > 0 && !in.policy.HasHub(hub) {
		out = append(out, fmt.Sprintf("hub %q is not one of %s", hub, strings.Join(in.policy.Hubs, ", ")))
	}
	pt := strings.TrimSpace(in.doc.Fields[document.FieldPageType])
	if pt != "" && len(in.policy.PageTypes) > 0 && !in.policy.HasPageType(pt) {
		out = append(out, fmt.Sprintf("page_type %q is not one of %s", pt, strings.Join(in.policy.PageTypes, ", ")))
	}
	return out
}

func checkIdentifier(in *input) []string {
	slug := strings.TrimSpace(in.doc.Fields[document.FieldSlug])
	if slug == "" || in.doc.ID == "" || slug == in.doc.ID {
		return nil
	}
	return []string{fmt.Sprintf("slug %q does not match identifier %q", slug, in.doc.ID)}
}

func checkOutline(in *input) []string {
	outline := in.policy.Outline
	if len(outline) == 0 {
		return nil
	}
	h2s := in.body.h2s()

	if !in.policy.AllowExtraSections {
		if !slices.EqualFunc(h2s, outline, func(a, b string) bool { return a == strings.TrimSpace(b) }) {
			return []string{fmt.Sprintf("section outline mismatch (got %d level-2 headings, want %d in fixed order)", len(h2s), len(outline))}
		}
		return nil
	}

	idx := 0
	for _, h := range h2s {
		if idx < len(outline) && h == strings.TrimSpace(outline[idx]) {
			idx++
		}
	}
	if idx != len(outline) {
		return []string{fmt.Sprintf("section outline missing or out of order (next expected %q)", outline[idx])}
	}
	return nil
}

func checkHeadingLevels(in *input) []string {
	if !in.policy.EnforceHeadingLevels {
		return nil
	}
	var bad []string
	for _, h := range in.body.headings {
		if h.level == 1 || h.level >= 4 {
			bad = append(bad, fmt.Sprintf("H%d %q", h.level, h.text))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return []string{"invalid heading levels (H1 or H4+): " + strings.Join(bad, ", ")}
}

// lexicon merges the policy's words with the safety net, case-insensitively
// de-duplicated, policy words first.
func lexicon(p *config.Policy) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range slices.Concat(p.ForbiddenWords, SafetyNet) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func checkForbiddenLexicon(in *input) []string {
	text := in.doc.Raw
	if text == "" {
		var b strings.Builder
		for _, k := range slices.Sorted(maps.Keys(in.doc.Fields)) {
			b.WriteString(in.doc.Fields[k])
			b.WriteByte('\n')
		}
		b.WriteString(in.doc.Body)
		text = b.String()
	}
	lower := strings.ToLower(text)

	var hits []string
	for _, w := range lexicon(in.policy) {
		if strings.Contains(lower, w) {
			hits = append(hits, w)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	listed := strings.Join(hits[:min(len(hits), maxListedHits)], ", ")
	if len(hits) > maxListedHits {
		listed += "..."
	}
	return []string{"forbidden phrases: " + listed}
}

func checkForbiddenPatterns(in *input) []string {
	var hits []string
	for _, re := range in.policy.BannedPatterns {
		if re.MatchString(in.body.stripped) {
			hits = append(hits, re.String())
		}
	}
	if len(hits) == 0 {
		return nil
	}
	return []string{"banned patterns matched: " + strings.Join(hits, ", ")}
}

func checkFAQCount(in *input) []string {
	n := 0
	found := false
	for _, s := range in.body.sections {
		if in.policy.IsFAQHeading(s.title) {
			n = s.faqItems()
			found = true
			break
		}
	}
	if n >= in.policy.FAQMin && n <= in.policy.FAQMax {
		return nil
	}
	if !found {
		return []string{fmt.Sprintf("no %q section (expected %d-%d items)", in.policy.FAQHeading, in.policy.FAQMin, in.policy.FAQMax)}
	}
	return []string{fmt.Sprintf("FAQ count out of range (%d, expected %d-%d)", n, in.policy.FAQMin, in.policy.FAQMax)}
}

func checkIntroLength(in *input) []string {
	if in.policy.MinIntroWords <= 0 || in.body.introWords >= in.policy.MinIntroWords {
		return nil
	}
	return []string{fmt.Sprintf("intro too short (%d words < %d)", in.body.introWords, in.policy.MinIntroWords)}
}

func checkWordCount(in *input) []string {
	wc := in.body.words
	if wc < in.policy.MinWords {
		return []string{fmt.Sprintf("too short (%d words < %d)", wc, in.policy.MinWords)}
	}
	if in.policy.MaxWords > 0 && wc > in.policy.MaxWords {
		return []string{fmt.Sprintf("too long (%d words > %d)", wc, in.policy.MaxWords)}
	}
	return nil
}

func checkSectionLength(in *input) []string {
	if in.policy.MinSectionWords <= 0 {
		return nil
	}
	var short []string
	for _, s := range in.body.sections {
		if in.policy.IsFAQHeading(s.title) || !slices.Contains(in.policy.Outline, s.title) {
			continue
		}
		if s.words < in.policy.MinSectionWords {
			short = append(short, fmt.Sprintf("%q (%d words)", s.title, s.words))
		}
	}
	if len(short) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("sections below %d words: %s", in.policy.MinSectionWords, strings.Join(short, ", "))}
}

func checkInternalLinks(in *input) []string {
	links := in.body.internalLinks()
	var out []string
	if len(links) < in.policy.MinInternalLinks {
		out = append(out, fmt.Sprintf("too few internal links (%d < %d)", len(links), in.policy.MinInternalLinks))
	}
	if in.policy.MaxInternalLinks > 0 && len(links) > in.policy.MaxInternalLinks {
		out = append(out, fmt.Sprintf("too many internal links (%d > %d)", len(links), in.policy.MaxInternalLinks))
	}
	for _, l := range links {
		anchor := strings.ToLower(strings.TrimSpace(l.anchor))
		if slices.ContainsFunc(in.policy.GenericAnchors, func(g string) bool {
			return strings.ToLower(strings.TrimSpace(g)) == anchor
		}) {
			out = append(out, fmt.Sprintf("bad anchor text %q for %s", l.anchor, l.dest))
			break
		}
	}
	return out
}

func checkParagraphDensity(in *input) []string {
	limit := in.policy.MaxSentencesPerParagraph
	if limit <= 0 {
		return nil
	}
	over, worst := 0, 0
	for _, p := range in.body.paragraphs {
		if countWords(p) < minDensityWords {
			continue
		}
		if n := countSentences(p); n > limit {
			over++
			worst = max(worst, n)
		}
	}
	if over == 0 {
		return nil
	}
	return []string{fmt.Sprintf("%d paragraph(s) exceed %d sentences (longest has %d)", over, limit, worst)}
}
