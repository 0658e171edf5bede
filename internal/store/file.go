package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sammichenVV/translateserver/internal/terms"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// DefaultFilePath is used when no JSON file is configured.
const DefaultFilePath = "data/terms.json"

// File keeps entries as a JSON array that is rewritten on every commit.
type File struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFile creates a store backed by the JSON file at path. The file is
// created on the first commit.
func NewFile(path string, logger *zap.Logger) (*File, error) {
	if path == "" {
		path = DefaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create term file directory: %w", err)
	}

	logger.Info("File term store initialized", zap.String("path", path))
	return &File{path: path, logger: logger}, nil
}

// Load returns the entries of the file. A missing file holds no entries.
func (s *File) Load(ctx context.Context) ([]terms.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Commit applies batch and rewrites the file atomically.
func (s *File) Commit(ctx context.Context, batch terms.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readLocked()
	if err != nil {
		return err
	}

	entries := orderedmap.New[string, terms.Entry]()
	for _, e := range current {
		entries.Set(e.Key(), e)
	}
	for _, e := range batch.Upserts {
		entries.Set(e.Key(), e)
	}
	for _, key := range batch.Deletes {
		entries.Delete(key)
	}

	out := make([]terms.Entry, 0, entries.Len())
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return s.writeLocked(out)
}

// Close is a no-op; the file is not held open between commits.
func (s *File) Close() error {
	return nil
}

func (s *File) readLocked() ([]terms.Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read term file: %w", err)
	}

	var entries []terms.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse term file %s: %w", s.path, err)
	}
	return entries, nil
}

// writeLocked writes entries to a temp file in the same directory and
// renames it over the store file.
func (s *File) writeLocked(entries []terms.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal terms: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".terms-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace term file: %w", err)
	}

	s.logger.Debug("Term file rewritten", zap.String("path", s.path), zap.Int("entries", len(entries)))
	return nil
}

var _ terms.Store = (*File)(nil)
