// Package manifest persists the factory's cross-run bookkeeping: which
// identifiers have been used, which are blacklisted, and what the current
// run produced.
//
// Loading never fails. A missing or corrupt file yields an empty state and
// any key absent from an older manifest is filled with its empty value.
// Saving writes to a temporary file in the same directory and renames it
// over the canonical path, so readers never observe a half-written file.
//
// The package assumes a single writer; overlapping runs may race on Save.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// DefaultPath is where the generator keeps its manifest.
const DefaultPath = "scripts/manifest.json"

// State is the durable run state.
//
// Invariants (restored by Load and kept by the mutators):
//   - Blacklisted ⊆ UsedIdentifiers
//   - ProducedThisRun ⊆ UsedIdentifiers
//   - no list contains duplicates
type State struct {
	UsedIdentifiers []string `json:"used_identifiers"`
	Blacklisted     []string `json:"blacklisted"`
	ProducedThisRun []string `json:"produced_this_run"`

	// TemplateIndex rotates page types across runs.
	TemplateIndex int `json:"template_index"`
}

// LoadInfo describes how a manifest was obtained
type LoadInfo struct {
	Missing   bool  // No file at the path; defaults used
	Recovered bool  // File was unreadable or corrupt; defaults used
	Healed    bool  // File parsed but keys were missing or invariants repaired
	Cause     error // Underlying read/parse error when Recovered
}

// New returns an empty, valid state
func New() *State {
	return &State{
		UsedIdentifiers: []string{},
		Blacklisted:     []string{},
		ProducedThisRun: []string{},
	}
}

// rawState mirrors the on-disk shape with every key optional.
type rawState struct {
	UsedIdentifiers *[]string `json:"used_identifiers"`
	Blacklisted     *[]string `json:"blacklisted"`
	ProducedThisRun *[]string `json:"produced_this_run"`
	TemplateIndex   *int      `json:"template_index"`

	// Earlier manifests tracked slugs under these names.
	UsedSlugs        *[]string `json:"used_slugs"`
	GeneratedThisRun *[]string `json:"generated_this_run"`
}

// Load reads the manifest at path. It never returns an error: problems are
// reported through LoadInfo and the returned state is always usable.
func Load(path string) (*State, LoadInfo) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), LoadInfo{Missing: true}
		}
		return New(), LoadInfo{Recovered: true, Cause: fmt.Errorf("reading manifest: %w", err)}
	}
	return Decode(data)
}

// Decode builds a state from manifest bytes with the same self-healing
// rules as Load.
func Decode(data []byte) (*State, LoadInfo) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), LoadInfo{Recovered: true, Cause: fmt.Errorf("manifest is empty")}
	}

	var raw rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return New(), LoadInfo{Recovered: true, Cause: fmt.Errorf("parsing manifest: %w", err)}
	}

	info := LoadInfo{}
	s := New()

	switch {
	case raw.UsedIdentifiers != nil:
		s.UsedIdentifiers = append(s.UsedIdentifiers, *raw.UsedIdentifiers...)
		if raw.UsedSlugs != nil {
			s.UsedIdentifiers = append(s.UsedIdentifiers, *raw.UsedSlugs...)
			info.Healed = true
		}
	case raw.UsedSlugs != nil:
		s.UsedIdentifiers = append(s.UsedIdentifiers, *raw.UsedSlugs...)
		info.Healed = true
	default:
		info.Healed = true
	}

	if raw.Blacklisted != nil {
		s.Blacklisted = append(s.Blacklisted, *raw.Blacklisted...)
	} else {
		info.Healed = true
	}

	switch {
	case raw.ProducedThisRun != nil:
		s.ProducedThisRun = append(s.ProducedThisRun, *raw.ProducedThisRun...)
	case raw.GeneratedThisRun != nil:
		s.ProducedThisRun = append(s.ProducedThisRun, *raw.GeneratedThisRun...)
		info.Healed = true
	default:
		info.Healed = true
	}

	if raw.TemplateIndex != nil && *raw.TemplateIndex >= 0 {
		s.TemplateIndex = *raw.TemplateIndex
	}

	if s.normalize() {
		info.Healed = true
	}
	return s, info
}

// normalize drops blanks and duplicates and restores the subset
// invariants. It reports whether anything changed.
func (s *State) normalize() bool {
	changed := false

	dedupe := func(in []string) []string {
		out := make([]string, 0, len(in))
		seen := make(map[string]struct{}, len(in))
		for _, id := range in {
			if id == "" {
				changed = true
				continue
			}
			if _, ok := seen[id]; ok {
				changed = true
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return out
	}

	s.UsedIdentifiers = dedupe(s.UsedIdentifiers)
	s.Blacklisted = dedupe(s.Blacklisted)
	s.ProducedThisRun = dedupe(s.ProducedThisRun)

	for _, id := range append(slices.Clone(s.Blacklisted), s.ProducedThisRun...) {
		if !slices.Contains(s.UsedIdentifiers, id) {
			s.UsedIdentifiers = append(s.UsedIdentifiers, id)
			changed = true
		}
	}
	return changed
}

// Save writes the state atomically: temp file in the target directory,
// fsync, then rename over path.
func Save(path string, s *State) error {
	if s == nil {
		s = New()
	}
	out := s.Clone()
	out.normalize()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')

	return WriteFileAtomic(path, data, 0o644)
}

// WriteFileAtomic replaces path with data without ever exposing a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	committed = true
	return nil
}
