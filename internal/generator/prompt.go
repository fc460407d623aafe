package generator

import (
	"fmt"
	"strings"

	"github.com/steveyegge/pagefactory/internal/config"
)

// SystemPrompt returns the instruction block sent with every request.
func SystemPrompt(p *config.Policy) string {
	var b strings.Builder
	b.WriteString("You generate calm, reassuring evergreen content.\n")
	b.WriteString("NO medical, legal, or financial advice.\n")
	if len(p.ForbiddenWords) > 0 {
		fmt.Fprintf(&b, "Forbidden words: %s.\n", strings.Join(p.ForbiddenWords, ", "))
	}
	b.WriteString("\nYou MUST return valid JSON only. No markdown fences, no commentary.\n")
	return b.String()
}

// linkRange is the internal-link count the prompt asks for.
func linkRange(p *config.Policy) (lo, hi int) {
	lo = p.MinInternalLinks
	hi = p.MaxInternalLinks
	if hi <= 0 {
		hi = lo + 2
	}
	return lo, hi
}

// BuildPrompt renders the user prompt for one title.
func BuildPrompt(p *config.Policy, title, pageType string, linkTargets []string) string {
	var targets strings.Builder
	if len(linkTargets) == 0 {
		targets.WriteString("- (no existing pages yet)\n")
	}
	for _, slug := range linkTargets {
		fmt.Fprintf(&targets, "- %s\n", PagePath(slug))
	}

	var outline strings.Builder
	for _, h := range p.Outline {
		fmt.Fprintf(&outline, "## %s\n", h)
	}

	var b strings.Builder
	b.WriteString("Return ONLY a valid JSON object with keys:\n")
	b.WriteString("title\n")
	b.WriteString("summary (ONE sentence, 12-22 words, no advice, no dates, no prices)\n")
	fmt.Fprintf(&b, "hub (one of: %s)\n", strings.Join(p.Hubs, ", "))
	fmt.Fprintf(&b, "page_type (must be exactly: %s)\n", pageType)
	b.WriteString("body_md (markdown body ONLY; NO frontmatter)\n\n")

	if len(p.Outline) > 0 {
		b.WriteString("You MUST use these exact H2 headings (in this exact order):\n")
		b.WriteString(outline.String())
		b.WriteString("\n")
	}
	if p.FAQHeading != "" {
		fmt.Fprintf(&b, "Under \"## %s\" write %d-%d questions, each as an H3 heading followed by a short answer.\n", p.FAQHeading, p.FAQMin, p.FAQMax)
		b.WriteString("Use only H2 and H3 headings.\n\n")
	}

	if lo, hi := linkRange(p); lo > 0 {
		b.WriteString("Internal linking rules:\n")
		fmt.Fprintf(&b, "- You MUST include %d-%d internal links, using ONLY these exact URLs (pick relevant ones):\n", lo, hi)
		b.WriteString(targets.String())
		b.WriteString("- Format links as: [anchor text](/pages/slug/)\n")
		b.WriteString("- Use descriptive anchor text, never \"click here\" or \"here\".\n")
		b.WriteString("- Do NOT invent slugs. Do NOT use external links.\n\n")
	}

	b.WriteString("Content rules:\n")
	b.WriteString("- Calm, reassuring, globally applicable.\n")
	b.WriteString("- Avoid medical/legal/financial advice.\n")
	if len(p.ForbiddenWords) > 0 {
		fmt.Fprintf(&b, "- Avoid forbidden words: %s.\n", strings.Join(p.ForbiddenWords, ", "))
	}
	b.WriteString("- Keep it evergreen.\n\n")

	b.WriteString("Now write the page for the title:\n")
	b.WriteString(title)
	b.WriteString("\n")
	return b.String()
}

// PagePath is the site-local URL of a page.
func PagePath(slug string) string {
	return "/pages/" + slug + "/"
}
