package gates

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/pagefactory/internal/config"
	"github.com/steveyegge/pagefactory/internal/document"
)

const validBody = `A short lead paragraph that sets a calm tone.

## What this feeling usually means
It is common. See [why Mondays feel heavy](/pages/monday-blues/) for more.

## Common reasons
Workload and sleep. Related: [sleep and stress](/pages/sleep-and-stress/).

## What makes it worse
Scrolling late. Also [comparison traps](/pages/comparison-traps/).

## What helps (non-advice)
Small routines. Read [small routines](/pages/small-routines/).

## When it might signal a bigger issue
If it lasts for weeks, talk to someone you trust.

## FAQs
### Is this common?
Yes.
### Does it pass?
Often.
### Is it my fault?
No.
### What can I try?
Rest.
`

const lastFAQ = "### What can I try?\nRest.\n"

func testHeader(slug string) document.Header {
	return document.Header{
		Title:       "Is it normal to dread Mondays?",
		Slug:        slug,
		Description: "A calm look at the Sunday-night dip.",
		Date:        "2026-02-08",
		Hub:         "work-career",
		PageType:    "is-it-normal",
	}
}

func pageWith(t *testing.T, h document.Header, body string) *document.Document {
	t.Helper()
	raw, err := document.Render(h, "", body)
	require.NoError(t, err)
	return document.Parse(h.Slug, raw)
}

func page(t *testing.T, body string) *document.Document {
	t.Helper()
	return pageWith(t, testHeader("is-it-normal-to-dread-mondays"), body)
}

func TestEvaluateValidPage(t *testing.T) {
	doc := page(t, validBody)
	for _, subset := range []Subset{SubsetInline, SubsetFull} {
		res := Evaluate(doc, config.DefaultPolicy(), subset)
		assert.True(t, res.Passed, "%s: %v", subset, res.Reasons())
		assert.Empty(t, res.Violations)
		assert.NoError(t, res.Err())
	}
}

func TestEvaluateNilPolicyUsesDefaults(t *testing.T) {
	res := Evaluate(page(t, validBody), nil, SubsetFull)
	assert.True(t, res.Passed, res.Reasons())
}

func TestEvaluateIsPure(t *testing.T) {
	body := strings.Replace(validBody, lastFAQ, "", 1) + "\n#### Too deep\nguaranteed\n"
	doc := page(t, body)
	policy := config.DefaultPolicy()

	first := Evaluate(doc, policy, SubsetFull)
	second := Evaluate(doc, policy, SubsetFull)
	require.False(t, first.Passed)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Evaluate not deterministic (-first +second):\n%s", diff)
	}
}

func TestEvaluateAccumulatesInFixedOrder(t *testing.T) {
	h := testHeader("is-it-normal-to-dread-mondays")
	h.Hub = "space"
	body := strings.Replace(validBody, lastFAQ, "", 1) + "\n#### Too deep\nResults are guaranteed.\n"

	res := Evaluate(pageWith(t, h, body), config.DefaultPolicy(), SubsetFull)
	want := []Rule{RuleTaxonomy, RuleHeadingLevels, RuleForbiddenLexicon, RuleFAQCount}
	if diff := cmp.Diff(want, res.Rules()); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}

	var verr *ValidationError
	require.ErrorAs(t, res.Err(), &verr)
	assert.Len(t, verr.Violations, 4)
	assert.Contains(t, verr.Error(), "faq-count: FAQ count out of range (3, expected 4-6)")
}

func TestRequiredFieldsMissing(t *testing.T) {
	raw := "---\ntitle: \"T\"\nslug: \"t\"\n---\n" + validBody
	res := Evaluate(document.Parse("t", []byte(raw)), config.DefaultPolicy(), SubsetInline)

	want := []Violation{{Rule: RuleRequiredFields, Detail: "missing header fields: description, date, hub, page_type"}}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}
}

func TestRequiredFieldsEachNamed(t *testing.T) {
	policy := config.DefaultPolicy()
	for _, field := range policy.RequiredFields {
		t.Run(field, func(t *testing.T) {
			fields := testHeader("t").Fields()
			fields[field] = "   "
			var b strings.Builder
			b.WriteString("---\n")
			for _, k := range policy.RequiredFields {
				b.WriteString(k + ": \"" + fields[k] + "\"\n")
			}
			b.WriteString("---\n")
			b.WriteString(validBody)

			res := Evaluate(document.Parse("t", []byte(b.String())), policy, SubsetFull)
			require.False(t, res.Passed)
			assert.Equal(t, RuleRequiredFields, res.Violations[0].Rule)
			assert.Contains(t, res.Violations[0].Detail, field)
		})
	}
}

func TestRequiredFieldsUnreadableHeader(t *testing.T) {
	raw := "---\ntitle: [unclosed\n---\n" + validBody
	res := Evaluate(document.Parse("t", []byte(raw)), config.DefaultPolicy(), SubsetInline)
	require.False(t, res.Passed)
	assert.Contains(t, res.Violations[0].Detail, "header unreadable")
}

func TestFAQCountBoundary(t *testing.T) {
	policy := config.DefaultPolicy()
	extra := "### One more?\nYes.\n### And another?\nYes.\n"

	tests := []struct {
		name string
		body string
		pass bool
	}{
		{"min-1 fails", strings.Replace(validBody, lastFAQ, "", 1), false},
		{"min passes", validBody, true},
		{"max passes", validBody + extra, true},
		{"max+1 fails", validBody + extra + "### Last?\nYes.\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(page(t, tt.body), policy, SubsetFull)
			assert.Equal(t, tt.pass, res.Passed, res.Reasons())
			if !tt.pass {
				assert.Equal(t, []Rule{RuleFAQCount}, res.Rules())
			}
		})
	}
}

func TestFAQCountQuestionLines(t *testing.T) {
	faq := func(n int) string {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteString("Q: Is this common?\nA: Yes.\n\n")
		}
		return b.String()
	}
	head := validBody[:strings.Index(validBody, "### Is this common?")]

	res := Evaluate(page(t, head+faq(4)), config.DefaultPolicy(), SubsetFull)
	assert.True(t, res.Passed, res.Reasons())

	res = Evaluate(page(t, head+faq(3)), config.DefaultPolicy(), SubsetFull)
	assert.Equal(t, []Rule{RuleFAQCount}, res.Rules())

	bold := strings.ReplaceAll(faq(4), "Q:", "**Q:**")
	res = Evaluate(page(t, head+bold), config.DefaultPolicy(), SubsetFull)
	assert.True(t, res.Passed, res.Reasons())
}

func TestFAQSectionMissing(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.Outline = policy.Outline[:5]
	body := validBody[:strings.Index(validBody, "## FAQs")]

	res := Evaluate(page(t, body), policy, SubsetFull)
	require.Equal(t, []Rule{RuleFAQCount}, res.Rules())
	assert.Contains(t, res.Violations[0].Detail, `no "FAQs" section`)
}

func TestBadAnchorText(t *testing.T) {
	body := strings.Replace(validBody, "talk to someone you trust.", "talk to someone you trust, or read [here](/docs/x/).", 1)

	res := Evaluate(page(t, body), config.DefaultPolicy(), SubsetFull)
	want := []Violation{{Rule: RuleInternalLinks, Detail: `bad anchor text "here" for /docs/x/`}}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, res.Reasons()[0], "bad anchor text")

	// The inline subset carries the link rule too.
	inline := Evaluate(page(t, body), config.DefaultPolicy(), SubsetInline)
	assert.Equal(t, []Rule{RuleInternalLinks}, inline.Rules())
}

func TestInternalLinkCount(t *testing.T) {
	policy := config.DefaultPolicy()
	body := strings.Replace(validBody, "[small routines](/pages/small-routines/)", "[small routines](https://example.com/routines)", 1)

	res := Evaluate(page(t, body), policy, SubsetFull)
	want := []Violation{{Rule: RuleInternalLinks, Detail: "too few internal links (3 < 4)"}}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}

	policy.MinInternalLinks = 1
	policy.MaxInternalLinks = 2
	res = Evaluate(page(t, validBody), policy, SubsetFull)
	want = []Violation{{Rule: RuleInternalLinks, Detail: "too many internal links (4 > 2)"}}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}
}

func TestIsInternal(t *testing.T) {
	tests := []struct {
		dest string
		want bool
	}{
		{"/pages/x/", true},
		{"../x/", true},
		{"x/", true},
		{"/docs/x/", true},
		{"https://example.com", false},
		{"http://example.com", false},
		{"HTTPS://EXAMPLE.COM", false},
		{"mailto:a@example.com", false},
		{"tel:+123", false},
		{"//cdn.example.com/x", false},
		{"#faqs", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isInternal(tt.dest), tt.dest)
	}
}

func TestOutline(t *testing.T) {
	extra := strings.Replace(validBody, "## Common reasons", "## An extra section\nText.\n\n## Common reasons", 1)
	swapped := strings.Replace(
		strings.Replace(validBody, "## Common reasons", "## TMP", 1),
		"## What makes it worse", "## Common reasons", 1)
	swapped = strings.Replace(swapped, "## TMP", "## What makes it worse", 1)

	tests := []struct {
		name       string
		body       string
		allowExtra bool
		pass       bool
	}{
		{"exact", validBody, false, true},
		{"extra section rejected", extra, false, false},
		{"extra section allowed", extra, true, true},
		{"out of order", swapped, false, false},
		{"out of order with extras allowed", swapped, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := config.DefaultPolicy()
			policy.AllowExtraSections = tt.allowExtra
			res := Evaluate(page(t, tt.body), policy, SubsetInline)
			assert.Equal(t, tt.pass, res.Passed, res.Reasons())
			if !tt.pass {
				assert.Equal(t, []Rule{RuleOutline}, res.Rules())
			}
		})
	}
}

func TestHeadingLevels(t *testing.T) {
	body := "# Big title\n\n" + validBody + "\n#### Deep\ntext\n"
	policy := config.DefaultPolicy()

	res := Evaluate(page(t, body), policy, SubsetFull)
	want := []Violation{{Rule: RuleHeadingLevels, Detail: `invalid heading levels (H1 or H4+): H1 "Big title", H4 "Deep"`}}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}

	policy.EnforceHeadingLevels = false
	assert.True(t, Evaluate(page(t, body), policy, SubsetFull).Passed)

	// Headings inside fenced code do not count.
	fenced := validBody + "\n```\n# not a heading\n```\n"
	assert.True(t, Evaluate(page(t, fenced), config.DefaultPolicy(), SubsetFull).Passed)
}

func TestForbiddenLexicon(t *testing.T) {
	body := validBody + "\nResults are guaranteed. As an AI I cannot say more.\n"
	res := Evaluate(page(t, body), config.DefaultPolicy(), SubsetInline)
	want := []Violation{{Rule: RuleForbiddenLexicon, Detail: "forbidden phrases: guaranteed, as an ai"}}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}
}

func TestForbiddenLexiconScansHeader(t *testing.T) {
	h := testHeader("t")
	h.Description = "Relief guaranteed"
	res := Evaluate(pageWith(t, h, validBody), config.DefaultPolicy(), SubsetInline)
	assert.Equal(t, []Rule{RuleForbiddenLexicon}, res.Rules())
}

func TestForbiddenLexiconSafetyNetAlwaysApplies(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.ForbiddenWords = nil
	res := Evaluate(page(t, validBody+"\nThis is not medical advice.\n"), policy, SubsetInline)
	assert.Equal(t, []Rule{RuleForbiddenLexicon}, res.Rules())
}

func TestSafetyNetSparesOutlineHeadings(t *testing.T) {
	policy := config.DefaultPolicy()
	for _, heading := range policy.Outline {
		lower := strings.ToLower(heading)
		for _, w := range SafetyNet {
			assert.NotContains(t, lower, w, "safety-net phrase %q matches outline heading %q", w, heading)
		}
	}

	policy.ForbiddenWords = nil
	assert.True(t, Evaluate(page(t, validBody), policy, SubsetInline).Passed)
}

func TestForbiddenLexiconListsAtMostEight(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.ForbiddenWords = []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india"}
	body := validBody + "\nalpha bravo charlie delta echo foxtrot golf hotel india\n"
	res := Evaluate(page(t, body), policy, SubsetInline)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "forbidden phrases: alpha, bravo, charlie, delta, echo, foxtrot, golf, hotel...", res.Violations[0].Detail)
}

func TestForbiddenPatterns(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.BannedPatterns = []*regexp.Regexp{regexp.MustCompile(`(?im)\b(19|20)\d{2}\b`)}

	res := Evaluate(page(t, validBody+"\nBack in 2019 things were different.\n"), policy, SubsetFull)
	assert.Equal(t, []Rule{RuleForbiddenPattern}, res.Rules())

	// Fenced code is not scanned and the header date is not part of the body.
	res = Evaluate(page(t, validBody+"\n```\n2019\n```\n"), policy, SubsetFull)
	assert.True(t, res.Passed, res.Reasons())

	// Patterns are not part of the inline subset.
	res = Evaluate(page(t, validBody+"\nBack in 2019.\n"), policy, SubsetInline)
	assert.True(t, res.Passed)
}

func TestLengthRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Policy)
		want   []Violation
	}{
		{
			name:   "intro too short",
			mutate: func(p *config.Policy) { p.MinIntroWords = 10 },
			want:   []Violation{{Rule: RuleIntroLength, Detail: "intro too short (9 words < 10)"}},
		},
		{
			name:   "intro long enough",
			mutate: func(p *config.Policy) { p.MinIntroWords = 9 },
		},
		{
			name:   "too short",
			mutate: func(p *config.Policy) { p.MinWords = 100000; p.MaxWords = 200000 },
		},
		{
			name:   "too long",
			mutate: func(p *config.Policy) { p.MaxWords = 10 },
		},
		{
			name:   "short sections",
			mutate: func(p *config.Policy) { p.MinSectionWords = 6 },
			want: []Violation{{
				Rule:   RuleSectionLength,
				Detail: `sections below 6 words: "What makes it worse" (5 words), "What helps (non-advice)" (5 words)`,
			}},
		},
		{
			name:   "sections long enough",
			mutate: func(p *config.Policy) { p.MinSectionWords = 5 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := config.DefaultPolicy()
			tt.mutate(policy)
			res := Evaluate(page(t, validBody), policy, SubsetFull)
			switch tt.name {
			case "too short":
				require.Equal(t, []Rule{RuleWordCount}, res.Rules())
				assert.Contains(t, res.Violations[0].Detail, "too short")
			case "too long":
				require.Equal(t, []Rule{RuleWordCount}, res.Rules())
				assert.Contains(t, res.Violations[0].Detail, "too long")
			default:
				if diff := cmp.Diff(tt.want, res.Violations); diff != "" {
					t.Errorf("violations mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestParagraphDensity(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.MaxSentencesPerParagraph = 2

	dense := "\nOne two three four. Five six seven eight. Nine ten eleven twelve.\n"
	res := Evaluate(page(t, validBody+dense), policy, SubsetFull)
	want := []Violation{{Rule: RuleParagraphDensity, Detail: "1 paragraph(s) exceed 2 sentences (longest has 3)"}}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}

	exempt := []string{
		"\nYes. No. Maybe.\n", // fragment under eight words
		"\n- One two three four. Five six seven eight. Nine ten eleven twelve.\n", // list item
		"\n```\nOne two three four. Five six seven eight. Nine ten eleven twelve.\n```\n",
	}
	for _, extra := range exempt {
		res := Evaluate(page(t, validBody+extra), policy, SubsetFull)
		assert.True(t, res.Passed, "%q: %v", extra, res.Reasons())
	}
}

func TestTaxonomyAndIdentifier(t *testing.T) {
	h := testHeader("is-it-normal-to-dread-mondays")
	h.Hub = "space"
	h.PageType = "listicle"
	res := Evaluate(pageWith(t, h, validBody), config.DefaultPolicy(), SubsetInline)
	require.Equal(t, []Rule{RuleTaxonomy}, res.Rules())
	assert.Len(t, res.Violations, 2)

	raw, err := document.Render(testHeader("is-it-normal-to-dread-mondays"), "", validBody)
	require.NoError(t, err)
	moved := document.Parse("some-other-dir", raw)

	assert.True(t, Evaluate(moved, config.DefaultPolicy(), SubsetInline).Passed)
	full := Evaluate(moved, config.DefaultPolicy(), SubsetFull)
	assert.Equal(t, []Rule{RuleIdentifier}, full.Rules())
}

func TestInlineSubsetSkipsOfflineRules(t *testing.T) {
	body := "# Big title\n\n" + strings.Replace(validBody, lastFAQ, "", 1)
	assert.True(t, Evaluate(page(t, body), config.DefaultPolicy(), SubsetInline).Passed)
	assert.False(t, Evaluate(page(t, body), config.DefaultPolicy(), SubsetFull).Passed)
}

func TestSubsetString(t *testing.T) {
	assert.Equal(t, "inline", SubsetInline.String())
	assert.Equal(t, "full", SubsetFull.String())
	assert.Equal(t, "unknown", Subset(9).String())
}
