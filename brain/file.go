package brain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the brain in a single JSON file.
type FileStore struct {
	Path string
}

// NewFileStore returns a store for path.
func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

func (s *FileStore) Name() string { return "file" }

// Load reads and decodes the file. A missing file yields ErrNotFound.
func (s *FileStore) Load(_ context.Context) (map[string][]string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read brain file: %w", err)
	}
	return decode(data)
}

// Save writes the document to a temp file in the same directory and renames
// it over Path, so readers never observe a partially written file.
func (s *FileStore) Save(_ context.Context, transitions map[string][]string) error {
	data, err := encode(transitions)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create brain dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".markov_brain-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp brain file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write brain file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close brain file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace brain file: %w", err)
	}
	return nil
}
