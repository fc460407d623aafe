package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileName is the name of the page file inside each identifier directory.
const FileName = "index.md"

// ErrExists is returned by Write when the identifier is already stored.
var ErrExists = errors.New("document already exists")

// Store keeps one directory per identifier under Root:
//
//	<Root>/<identifier>/index.md
//
// Writes are atomic at the directory level: the page is written into a
// hidden temporary directory which is then renamed into place, so a
// reader never sees a partial document.
type Store struct {
	Root string
}

// NewStore returns a store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Dir returns the directory holding the document for id.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.Root, id)
}

// Path returns the page file path for id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.Dir(id), FileName)
}

// Exists reports whether a directory for id is present.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.Dir(id))
	return err == nil
}

// List returns the identifiers of every stored document, sorted.
// A missing root is an empty store.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := os.Stat(s.Path(name)); err != nil {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// Read loads and parses the document stored under id.
func (s *Store) Read(id string) (*Document, error) {
	if err := checkIdentifier(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}
	return Parse(id, data), nil
}

// Write stores content as the document for id. It refuses to replace an
// existing document.
func (s *Store) Write(id string, content []byte) (err error) {
	if err := checkIdentifier(id); err != nil {
		return err
	}
	if s.Exists(id) {
		return fmt.Errorf("write document %s: %w", id, ErrExists)
	}
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("create content root: %w", err)
	}

	tmpDir, err := os.MkdirTemp(s.Root, "."+id+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	if err = writeSynced(filepath.Join(tmpDir, FileName), content); err != nil {
		return fmt.Errorf("write document %s: %w", id, err)
	}
	if err = os.Chmod(tmpDir, 0o755); err != nil {
		return fmt.Errorf("chmod temp dir: %w", err)
	}
	// Re-check right before the rename: an empty directory created in the
	// meantime would otherwise be silently replaced.
	if s.Exists(id) {
		err = fmt.Errorf("write document %s: %w", id, ErrExists)
		return err
	}
	if err = os.Rename(tmpDir, s.Dir(id)); err != nil {
		return fmt.Errorf("move document %s into place: %w", id, err)
	}
	return nil
}

func writeSynced(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Delete removes the whole directory for id.
func (s *Store) Delete(id string) error {
	if err := checkIdentifier(id); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Dir(id)); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// HubIndex groups stored identifiers by their hub header field.
// Documents that cannot be read or carry no hub are left out.
func (s *Store) HubIndex() (map[string][]string, error) {
	ids, err := s.List()
	if err != nil {
		return nil, err
	}
	index := make(map[string][]string)
	for _, id := range ids {
		doc, err := s.Read(id)
		if err != nil {
			continue
		}
		if hub := strings.TrimSpace(doc.Fields[FieldHub]); hub != "" {
			index[hub] = append(index[hub], id)
		}
	}
	return index, nil
}

func checkIdentifier(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("identifier is required")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid identifier %q", id)
	}
	return nil
}
