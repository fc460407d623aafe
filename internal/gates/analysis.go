package gates

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	fencedCode    = regexp.MustCompile("(?s)```.*?```")
	wordPattern   = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	sentenceEnd   = regexp.MustCompile(`[.!?]+`)
	schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
	questionLine  = regexp.MustCompile(`^[*_\s]*Q:`)
)

// minDensityWords is the length below which a paragraph is treated as a
// fragment and skipped by the paragraph-density rule.
const minDensityWords = 8

type heading struct {
	level int
	text  string
}

type link struct {
	anchor string
	dest   string
}

// section is the content under one level-2 heading, up to the next one.
type section struct {
	title    string
	words    int
	subheads int      // level-3 headings
	lines    []string // text lines of non-heading blocks
}

// analysis is the structural view of a body the rules work from. Fenced
// code is removed before parsing so nothing inside it counts.
type analysis struct {
	stripped   string
	headings   []heading // every heading, in order
	sections   []section // one per level-2 heading, in order
	introWords int       // words before the first level-2 heading
	words      int
	links      []link
	paragraphs []string // prose paragraphs outside lists
}

func analyze(body string) *analysis {
	a := &analysis{stripped: fencedCode.ReplaceAllString(body, "")}
	src := []byte(a.stripped)
	root := goldmark.DefaultParser().Parse(text.NewReader(src))

	var current *section
	for block := root.FirstChild(); block != nil; block = block.NextSibling() {
		if h, ok := block.(*ast.Heading); ok && h.Level == 2 {
			a.sections = append(a.sections, section{title: strings.TrimSpace(nodeText(h, src))})
			current = &a.sections[len(a.sections)-1]
			continue
		}
		content := blockText(block, src)
		n := countWords(content)
		if current == nil {
			a.introWords += n
			continue
		}
		current.words += n
		if h, ok := block.(*ast.Heading); ok {
			if h.Level == 3 {
				current.subheads++
			}
			continue
		}
		current.lines = append(current.lines, strings.Split(content, "\n")...)
	}

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			a.headings = append(a.headings, heading{level: node.Level, text: strings.TrimSpace(nodeText(node, src))})
		case *ast.Link:
			a.links = append(a.links, link{
				anchor: strings.TrimSpace(nodeText(node, src)),
				dest:   strings.TrimSpace(string(node.Destination)),
			})
		case *ast.List:
			a.collectListLinks(node, src)
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			a.paragraphs = append(a.paragraphs, nodeText(node, src))
		}
		return ast.WalkContinue, nil
	})

	for block := root.FirstChild(); block != nil; block = block.NextSibling() {
		a.words += countWords(blockText(block, src))
	}
	return a
}

// collectListLinks records links and headings inside a list without
// treating its paragraphs as prose.
func (a *analysis) collectListLinks(list ast.Node, src []byte) {
	_ = ast.Walk(list, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			a.headings = append(a.headings, heading{level: node.Level, text: strings.TrimSpace(nodeText(node, src))})
		case *ast.Link:
			a.links = append(a.links, link{
				anchor: strings.TrimSpace(nodeText(node, src)),
				dest:   strings.TrimSpace(string(node.Destination)),
			})
		}
		return ast.WalkContinue, nil
	})
}

// h2s returns the level-2 heading titles in order.
func (a *analysis) h2s() []string {
	out := make([]string, 0, len(a.sections))
	for _, s := range a.sections {
		out = append(out, s.title)
	}
	return out
}

// internalLinks returns links pointing at relative or site-local targets.
func (a *analysis) internalLinks() []link {
	var out []link
	for _, l := range a.links {
		if isInternal(l.dest) {
			out = append(out, l)
		}
	}
	return out
}

func isInternal(dest string) bool {
	switch {
	case dest == "":
		return false
	case strings.HasPrefix(dest, "#"):
		return false
	case strings.HasPrefix(dest, "//"):
		return false
	case schemePattern.MatchString(dest):
		return false
	}
	return true
}

// faqItems counts entries in the FAQ section: level-3 headings, or when
// there are none, lines opening with "Q:".
func (s section) faqItems() int {
	if s.subheads > 0 {
		return s.subheads
	}
	n := 0
	for _, line := range s.lines {
		if questionLine.MatchString(line) {
			n++
		}
	}
	return n
}

// blockText returns the visible text of a block, one line per source
// line. Code and raw HTML contribute nothing.
func blockText(n ast.Node, src []byte) string {
	switch n.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
		return ""
	}
	if n.Type() == ast.TypeInline {
		return nodeText(n, src)
	}
	var parts []string
	if n.HasChildren() && n.FirstChild().Type() == ast.TypeInline {
		parts = append(parts, nodeText(n, src))
	} else {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t := blockText(c, src); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// nodeText concatenates the inline text under n. Soft and hard line
// breaks become newlines.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					b.WriteByte('\n')
				}
			case *ast.String:
				b.Write(t.Value)
			case *ast.RawHTML:
				// skip inline HTML
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

func countWords(s string) int {
	return len(wordPattern.FindAllStringIndex(s, -1))
}

func countSentences(s string) int {
	return len(sentenceEnd.FindAllStringIndex(s, -1))
}
