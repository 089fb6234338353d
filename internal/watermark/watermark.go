// Package watermark persists the incremental pull position between runs.
// The watermark is a single RFC 3339 timestamp in a text file: the start
// time of the last run that reached its source loop.
package watermark

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store reads and writes one watermark file.
type Store struct {
	path string
}

// New creates a watermark store for the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored watermark, or the zero time when no watermark
// exists yet. A corrupt file is an error rather than a silent full re-pull.
func (s *Store) Load() (time.Time, error) {
	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading watermark %s: %w", s.path, err)
	}

	raw := strings.TrimSpace(string(content))
	if raw == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt watermark %s: %w", s.path, err)
	}
	return t, nil
}

// Commit writes t as the new watermark. Future timestamps are clamped to
// now so a bad clock can never push the window past reality. The write is
// atomic: temp file in the same directory, then rename.
func (s *Store) Commit(t time.Time) error {
	if now := time.Now().UTC(); t.After(now) {
		t = now
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating watermark temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.WriteString(t.UTC().Format(time.RFC3339) + "\n")
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("writing watermark: %w", writeErr)
		}
		return fmt.Errorf("writing watermark: %w", closeErr)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing watermark: %w", err)
	}
	return nil
}
