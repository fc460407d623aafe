package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	raw := "---\n" +
		"title: \"Is it normal to dread Mondays?\"\n" +
		"slug: \"is-it-normal-to-dread-mondays\"\n" +
		"description: \"A calm look at the Sunday-night dip.\"\n" +
		"date: 2026-02-08\n" +
		"hub: \"work-career\"\n" +
		"page_type: is-it-normal\n" +
		"url: \"https://example.com/x\"\n" +
		"---\n\n" +
		"Lead paragraph.\n\n## What this feeling usually means\n"

	doc := Parse("is-it-normal-to-dread-mondays", []byte(raw))
	require.NoError(t, doc.HeaderErr)
	assert.Equal(t, "is-it-normal-to-dread-mondays", doc.ID)
	assert.Equal(t, "Is it normal to dread Mondays?", doc.Header.Title)
	assert.Equal(t, "is-it-normal-to-dread-mondays", doc.Header.Slug)
	assert.Equal(t, "2026-02-08", doc.Header.Date)
	assert.Equal(t, "work-career", doc.Header.Hub)
	assert.Equal(t, "is-it-normal", doc.Header.PageType)
	assert.Equal(t, map[string]string{"url": "https://example.com/x"}, doc.Header.Extra)
	assert.Equal(t, "Lead paragraph.\n\n## What this feeling usually means\n", doc.Body)
	assert.Len(t, doc.Fields, 7)
}

func TestParseCRLF(t *testing.T) {
	doc := Parse("x", []byte("---\r\ntitle: \"T\"\r\n---\r\nbody\r\n"))
	assert.Equal(t, "T", doc.Fields["title"])
	assert.Equal(t, "body\n", doc.Body)
}

func TestParseWithoutHeader(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no delimiter", "## Heading\ntext\n"},
		{"unclosed block", "---\ntitle: \"T\"\n\n## Heading\n"},
		{"delimiter not first", "\n---\ntitle: T\n---\nbody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Parse("x", []byte(tt.raw))
			assert.Empty(t, doc.Fields)
			assert.Equal(t, tt.raw, doc.Body)
			assert.NoError(t, doc.HeaderErr)
		})
	}
}

func TestParseMalformedHeader(t *testing.T) {
	doc := Parse("x", []byte("---\ntitle: \"unterminated\nslug: [\n---\nbody\n"))
	assert.Error(t, doc.HeaderErr)
	assert.Empty(t, doc.Fields)
	assert.Equal(t, "body\n", doc.Body)
}

func TestParseEmptyHeader(t *testing.T) {
	doc := Parse("x", []byte("---\n---\nbody\n"))
	assert.NoError(t, doc.HeaderErr)
	assert.Empty(t, doc.Fields)
	assert.Equal(t, "body\n", doc.Body)
}

func TestHeaderFieldsRoundTrip(t *testing.T) {
	h := Header{
		Title: "T", Slug: "t", Description: "D", Date: "2026-01-01",
		Hub: "milestones", PageType: "checklist",
		Extra: map[string]string{"url": "u"},
	}
	assert.Equal(t, h, HeaderFromFields(h.Fields()))
}

func TestRender(t *testing.T) {
	h := Header{
		Title:       `She said "fine" and meant it`,
		Slug:        "she-said-fine-and-meant-it",
		Description: "One line\nsplit across two.",
		Date:        "2026-02-08",
		Hub:         "social-norms",
		PageType:    "explainer",
		Extra:       map[string]string{"url": "https://example.com/a", "alias": "b"},
	}
	out, err := Render(h, "A calm lead.", "\n## First\nText.\n\n")
	require.NoError(t, err)

	want := "---\n" +
		"title: \"She said \\\"fine\\\" and meant it\"\n" +
		"slug: \"she-said-fine-and-meant-it\"\n" +
		"description: \"One line split across two.\"\n" +
		"date: \"2026-02-08\"\n" +
		"hub: \"social-norms\"\n" +
		"page_type: \"explainer\"\n" +
		"alias: \"b\"\n" +
		"url: \"https://example.com/a\"\n" +
		"---\n\n" +
		"A calm lead.\n\n" +
		"## First\nText.\n"
	assert.Equal(t, want, string(out))

	doc := Parse(h.Slug, out)
	require.NoError(t, doc.HeaderErr)
	assert.Equal(t, `She said "fine" and meant it`, doc.Header.Title)
	assert.Equal(t, "One line split across two.", doc.Header.Description)
	assert.Equal(t, "2026-02-08", doc.Header.Date)
}

func TestRenderLongValueStaysOnOneLine(t *testing.T) {
	title := strings.Repeat("very long title words ", 10)
	out, err := Render(Header{Title: title, Slug: "long"}, "", "body")
	require.NoError(t, err)

	lines := strings.Split(string(out), "\n")
	assert.True(t, strings.HasPrefix(lines[1], `title: "very long`))
	assert.True(t, strings.HasSuffix(lines[1], `words"`))
	assert.Equal(t, `slug: "long"`, lines[2])
}

func TestRenderOmitsEmptyLead(t *testing.T) {
	out, err := Render(Header{Title: "T", Slug: "t"}, "  \n ", "Body.")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "---\n\nBody.\n"))
}

func TestRenderRejectsInvalidHeader(t *testing.T) {
	tests := []struct {
		name string
		h    Header
	}{
		{"empty title", Header{Title: " ", Slug: "t"}},
		{"empty slug", Header{Title: "T"}},
		{"non-canonical slug", Header{Title: "T", Slug: "Not A Slug"}},
		{"path in slug", Header{Title: "T", Slug: "../etc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.h, "", "body")
			assert.ErrorIs(t, err, ErrInvalidHeader)
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("a"))
	assert.True(t, ValidIdentifier("is-it-normal-2"))
	assert.False(t, ValidIdentifier(""))
	assert.False(t, ValidIdentifier("-a"))
	assert.False(t, ValidIdentifier("a--b"))
	assert.False(t, ValidIdentifier("A"))
}
