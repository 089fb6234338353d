package watermark

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsZeroTime(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "pull_history.txt"))
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("Load = %v, want zero time", got)
	}
}

func TestCommitThenLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "pull_history.txt"))
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Commit(want); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Load = %v, want %v", got, want)
	}
}

func TestCommitOverwritesPrevious(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "pull_history.txt"))
	first := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	s.Commit(first)
	s.Commit(second)

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Equal(second) {
		t.Errorf("Load = %v, want %v", got, second)
	}
}

func TestCommitClampsFutureTimestamps(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "pull_history.txt"))

	if err := s.Commit(time.Now().Add(48 * time.Hour)); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.After(time.Now().Add(time.Minute)) {
		t.Errorf("Load = %v, future timestamp not clamped", got)
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pull_history.txt")
	if err := os.WriteFile(path, []byte("not a timestamp\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(path).Load(); err == nil {
		t.Error("want error for corrupt watermark")
	}
}

func TestLoadEmptyFileReturnsZeroTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pull_history.txt")
	if err := os.WriteFile(path, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := New(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("Load = %v, want zero time", got)
	}
}
