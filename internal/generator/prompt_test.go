package generator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/pagefactory/internal/config"
)

func TestBuildPrompt(t *testing.T) {
	p := config.DefaultPolicy()
	prompt := BuildPrompt(p, "Is it normal to dread Mondays?", "checklist", []string{"monday-blues", "sleep-and-stress"})

	assert.Contains(t, prompt, "page_type (must be exactly: checklist)")
	assert.Contains(t, prompt, "hub (one of: work-career, money-stress, burnout-load, milestones, social-norms)")
	assert.Contains(t, prompt, "## What this feeling usually means\n## Common reasons\n")
	assert.Contains(t, prompt, "write 4-6 questions")
	assert.Contains(t, prompt, "include 4-6 internal links")
	assert.Contains(t, prompt, "- /pages/monday-blues/\n- /pages/sleep-and-stress/\n")
	assert.Contains(t, prompt, "Avoid forbidden words: diagnose, diagnosis, prescribed, guaranteed.")
	assert.Regexp(t, `Now write the page for the title:\nIs it normal to dread Mondays\?\n$`, prompt)
}

func TestBuildPromptWithoutTargets(t *testing.T) {
	prompt := BuildPrompt(config.DefaultPolicy(), "T", "explainer", nil)
	assert.Contains(t, prompt, "- (no existing pages yet)")
}

func TestBuildPromptOmitsLinkRulesWhenNotRequired(t *testing.T) {
	p := config.DefaultPolicy()
	p.MinInternalLinks = 0
	prompt := BuildPrompt(p, "T", "explainer", []string{"a"})
	assert.NotContains(t, prompt, "Internal linking rules")
}

func TestLinkRange(t *testing.T) {
	p := config.DefaultPolicy()
	lo, hi := linkRange(p)
	assert.Equal(t, 4, lo)
	assert.Equal(t, 6, hi)

	p.MaxInternalLinks = 5
	_, hi = linkRange(p)
	assert.Equal(t, 5, hi)
}

func TestSystemPrompt(t *testing.T) {
	p := config.DefaultPolicy()
	s := SystemPrompt(p)
	assert.Contains(t, s, "valid JSON only")
	assert.Contains(t, s, "Forbidden words: diagnose")

	p.ForbiddenWords = nil
	assert.NotContains(t, SystemPrompt(p), "Forbidden words")
}

func TestLoadTitles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.txt")
	require.NoError(t, os.WriteFile(path, []byte("# pool\nFirst title\n\n  Second title  \r\n# skipped\nThird\n"), 0o644))

	titles, err := LoadTitles(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"First title", "Second title", "Third"}, titles)

	_, err = LoadTitles(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(map[string]any{
		"title": "T", "summary": "S", "hub": " work-career ", "page_type": "explainer", "body_md": "B", "extra": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, Payload{Title: "T", Summary: "S", Hub: "work-career", PageType: "explainer", Body: "B"}, p)

	_, err = DecodePayload(map[string]any{"title": "T", "summary": "  ", "hub": 3, "page_type": "x"})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"summary", "hub", "body_md"}, schemaErr.Keys)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "REJECTED_MALFORMED", OutcomeRejectedMalformed.String())
	assert.Equal(t, "WRITTEN", OutcomeWritten.String())
	assert.True(t, OutcomeWritten.Terminal())
	assert.False(t, OutcomeCalling.Terminal())
}
