package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pullsync/runtime/internal/database"
	"github.com/pullsync/runtime/pkg/pull"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(db, database.DriverSQLite, "rawitem")
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func (s *Store) mustRow(t *testing.T, source, itemID string) (title, payload string, dataUpdateID int64, deleted bool) {
	t.Helper()
	err := s.db.QueryRow(
		"SELECT title, json, dataupdate_id, deleted FROM rawitem WHERE source = ? AND item_id = ?",
		source, itemID).Scan(&title, &payload, &dataUpdateID, &deleted)
	if err != nil {
		t.Fatalf("row %s/%s: %v", source, itemID, err)
	}
	return title, payload, dataUpdateID, deleted
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Errorf("second EnsureSchema: %v", err)
	}
}

func TestNextDataUpdateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.NextDataUpdateID(ctx)
	if err != nil {
		t.Fatalf("NextDataUpdateID: %v", err)
	}
	if first != 1 {
		t.Errorf("first id = %d, want 1", first)
	}

	s.UpsertBatch(ctx, "desk", first, []pull.Record{
		{"id": "1", "title": "a", "created_at": "2026-01-01T00:00:00Z"},
	})

	second, err := s.NextDataUpdateID(ctx)
	if err != nil {
		t.Fatalf("NextDataUpdateID: %v", err)
	}
	if second != first+1 {
		t.Errorf("second id = %d, want %d", second, first+1)
	}
}

func TestUpsertBatchInsertAndUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, failed := s.UpsertBatch(ctx, "desk", 1, []pull.Record{
		{"id": float64(42), "subject": "original subject", "created_at": "2026-01-02T03:04:05Z", "body": "v1"},
	})
	if ok != 1 || failed != 0 {
		t.Fatalf("insert = (%d, %d), want (1, 0)", ok, failed)
	}

	// Same item pulled again with changed content
	ok, failed = s.UpsertBatch(ctx, "desk", 2, []pull.Record{
		{"id": float64(42), "subject": "new subject", "created_at": "2026-01-02T03:04:05Z", "body": "v2"},
	})
	if ok != 1 || failed != 0 {
		t.Fatalf("update = (%d, %d), want (1, 0)", ok, failed)
	}

	n, _ := s.Count(ctx, "desk")
	if n != 1 {
		t.Errorf("row count = %d, want 1 (no duplicate)", n)
	}

	title, payload, dataUpdateID, _ := s.mustRow(t, "desk", "42")
	if title != "new subject" {
		t.Errorf("title = %q, want updated subject", title)
	}
	var stored map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		t.Fatalf("stored json invalid: %v", err)
	}
	if stored["body"] != "v2" {
		t.Errorf("payload body = %v, want v2", stored["body"])
	}
	if dataUpdateID != 1 {
		t.Errorf("dataupdate_id = %d, want first-write value 1", dataUpdateID)
	}
}

func TestUpsertBatchTitleFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertBatch(ctx, "desk", 1, []pull.Record{
		{"id": "t", "title": "from title", "subject": "from subject", "created_at": "2026-01-01"},
		{"id": "s", "subject": "from subject", "created_at": "2026-01-01"},
		{"id": "n", "created_at": "2026-01-01"},
	})

	if title, _, _, _ := s.mustRow(t, "desk", "t"); title != "from title" {
		t.Errorf("title = %q", title)
	}
	if title, _, _, _ := s.mustRow(t, "desk", "s"); title != "from subject" {
		t.Errorf("subject fallback = %q", title)
	}
	if title, _, _, _ := s.mustRow(t, "desk", "n"); title != "" {
		t.Errorf("empty fallback = %q", title)
	}
}

func TestUpsertBatchBadRecordsCountedNotFatal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, failed := s.UpsertBatch(ctx, "desk", 1, []pull.Record{
		{"title": "no id", "created_at": "2026-01-01T00:00:00Z"},
		{"id": "good", "title": "fine", "created_at": "2026-01-01T00:00:00Z"},
		{"id": "bad-ts", "title": "bad", "created_at": "not a time"},
		{"id": "no-ts", "title": "missing"},
	})
	if ok != 1 {
		t.Errorf("succeeded = %d, want 1", ok)
	}
	if failed != 3 {
		t.Errorf("failed = %d, want 3", failed)
	}
}

func TestMarkDeletedExcept(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertBatch(ctx, "kb", 1, []pull.Record{
		{"id": "1", "created_at": "2026-01-01"},
		{"id": "2", "created_at": "2026-01-01"},
		{"id": "3", "created_at": "2026-01-01"},
	})
	s.UpsertBatch(ctx, "desk", 1, []pull.Record{
		{"id": "1", "created_at": "2026-01-01"},
	})

	flagged, err := s.MarkDeletedExcept(ctx, "kb", []string{"1", "3"})
	if err != nil {
		t.Fatalf("MarkDeletedExcept: %v", err)
	}
	if flagged != 1 {
		t.Errorf("flagged = %d, want 1", flagged)
	}

	if _, _, _, deleted := s.mustRow(t, "kb", "2"); !deleted {
		t.Error("kb/2 should be flagged deleted")
	}
	if _, _, _, deleted := s.mustRow(t, "kb", "1"); deleted {
		t.Error("kb/1 should be kept")
	}
	if _, _, _, deleted := s.mustRow(t, "desk", "1"); deleted {
		t.Error("other source must not be touched")
	}
}

func TestMarkDeletedExceptLargeKeepSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Keep set larger than sqlite's default bound-parameter limit, and
	// enough doomed rows to span multiple update chunks
	total := markDeletedChunkSize*3 + 200
	kept := markDeletedChunkSize*2 + 50

	records := make([]pull.Record, 0, total)
	for i := 0; i < total; i++ {
		records = append(records, pull.Record{"id": strconv.Itoa(i), "created_at": "2026-01-01"})
	}
	if ok, failed := s.UpsertBatch(ctx, "kb", 1, records); ok != total || failed != 0 {
		t.Fatalf("seed = (%d, %d), want (%d, 0)", ok, failed, total)
	}

	keep := make([]string, 0, kept)
	for i := 0; i < kept; i++ {
		keep = append(keep, strconv.Itoa(i))
	}

	flagged, err := s.MarkDeletedExcept(ctx, "kb", keep)
	if err != nil {
		t.Fatalf("MarkDeletedExcept: %v", err)
	}
	if want := int64(total - kept); flagged != want {
		t.Errorf("flagged = %d, want %d", flagged, want)
	}

	if _, _, _, deleted := s.mustRow(t, "kb", strconv.Itoa(kept-1)); deleted {
		t.Error("last kept row was flagged")
	}
	if _, _, _, deleted := s.mustRow(t, "kb", strconv.Itoa(kept)); !deleted {
		t.Error("first row beyond the keep set was not flagged")
	}
	if _, _, _, deleted := s.mustRow(t, "kb", strconv.Itoa(total-1)); !deleted {
		t.Error("final row was not flagged")
	}
}

func TestExtractCreatedAtLayouts(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-03-01T10:30:00Z", time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2026-03-01T10:30:00+02:00", time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"2026-03-01T10:30:00", time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2026-03-01 10:30:00", time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := extractCreatedAt(pull.Record{"created_at": tt.raw})
		if err != nil {
			t.Errorf("extractCreatedAt(%q): %v", tt.raw, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("extractCreatedAt(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
