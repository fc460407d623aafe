// Package importer loads a zip archive of externally written markdown
// pages into the content store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/mholt/archives"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/steveyegge/pagefactory/internal/deduplication"
	"github.com/steveyegge/pagefactory/internal/document"
	"github.com/steveyegge/pagefactory/internal/manifest"
)

// PagesDir is the archive directory pages are read from.
const PagesDir = "pages/"

// DefaultPageType is the page type given to imported pages.
const DefaultPageType = "explainer"

// Options controls an import
type Options struct {
	Hub      string // Required: hub written into every imported page
	PageType string // Defaults to DefaultPageType
	Date     string // Required: date written into every imported page
	Logger   *zap.Logger
}

// Skip records an archive entry that was not imported
type Skip struct {
	Entry  string
	Slug   string
	Reason string
}

// Result reports an import
type Result struct {
	Imported []string // Identifiers written, in archive order
	Skipped  []Skip
}

type entry struct {
	name string
	data []byte
}

// Import writes every pages/*.md entry of the archive at zipPath into
// store and marks it used in state. Entries whose identifier already
// exists in the store or the manifest are skipped. The caller saves state.
func Import(ctx context.Context, zipPath string, store *document.Store, state *manifest.State, opts Options) (*Result, error) {
	if opts.Hub == "" || opts.Date == "" {
		return nil, fmt.Errorf("import needs a hub and a date")
	}
	if opts.PageType == "" {
		opts.PageType = DefaultPageType
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := readPages(ctx, zipPath)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		slug, err := importEntry(store, state, e, opts)
		if err != nil {
			result.Skipped = append(result.Skipped, Skip{Entry: e.name, Slug: slug, Reason: err.Error()})
			logger.Warn("skipped archive entry", zap.String("entry", e.name), zap.String("slug", slug), zap.Error(err))
			continue
		}
		result.Imported = append(result.Imported, slug)
		logger.Debug("imported page", zap.String("entry", e.name), zap.String("slug", slug))
	}

	logger.Info("import finished",
		zap.String("archive", zipPath),
		zap.Int("imported", len(result.Imported)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

var errAlreadyUsed = errors.New("identifier already used")

func importEntry(store *document.Store, state *manifest.State, e entry, opts Options) (string, error) {
	doc := document.Parse(e.name, e.data)

	title := strings.TrimSpace(doc.Fields[document.FieldTitle])
	if title == "" {
		title = titleFromName(e.name)
	}
	slug := deduplication.Canonicalize(title)
	if slug == "" {
		return "", fmt.Errorf("title %q has no usable characters", title)
	}
	if state.IsUsed(slug) {
		return slug, errAlreadyUsed
	}

	header := document.Header{
		Title:       title,
		Slug:        slug,
		Description: strings.TrimSpace(doc.Fields[document.FieldDescription]),
		Date:        opts.Date,
		Hub:         opts.Hub,
		PageType:    opts.PageType,
	}
	if url := strings.TrimSpace(doc.Fields["url"]); url != "" {
		header.Extra = map[string]string{"url": url}
	}

	raw, err := document.Render(header, "", doc.Body)
	if err != nil {
		return slug, err
	}
	if err := store.Write(slug, raw); err != nil {
		if errors.Is(err, document.ErrExists) {
			state.MarkUsed(slug)
		}
		return slug, err
	}
	state.MarkUsed(slug)
	return slug, nil
}

// titleFromName derives a title from an entry's file name:
// "monday-blues.md" becomes "Monday Blues".
func titleFromName(name string) string {
	stem := strings.TrimSuffix(path.Base(name), path.Ext(name))
	return cases.Title(language.Und).String(strings.ReplaceAll(stem, "-", " "))
}

// readPages returns the markdown entries under PagesDir sorted by name.
func readPages(ctx context.Context, zipPath string) ([]entry, error) {
	f, err := os.Open(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var entries []entry
	err = archives.Zip{}.Extract(ctx, f, func(ctx context.Context, info archives.FileInfo) error {
		name := info.NameInArchive
		if info.IsDir() || !strings.HasPrefix(name, PagesDir) || !strings.HasSuffix(name, ".md") {
			return nil
		}
		rc, err := info.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		entries = append(entries, entry{name: name, data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", zipPath, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}
