// Package store persists pulled records into the relational target table.
// Rows are keyed by (source, item_id); re-pulling an item updates its title
// and payload in place, preserving first-seen metadata.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pullsync/runtime/internal/database"
	"github.com/pullsync/runtime/internal/logger"
	"github.com/pullsync/runtime/pkg/pull"
)

// createdAtLayouts are tried in order when parsing upstream timestamps.
// Naive timestamps are interpreted as UTC.
var createdAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Store writes pulled records to one target table.
type Store struct {
	db     *sql.DB
	driver string
	table  string
}

// Open connects to the target database and returns a ready store.
func Open(ctx context.Context, cfg database.Config, table string) (*Store, error) {
	db, driver, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, driver: driver, table: table}, nil
}

// New wraps an existing connection. Used by tests and by callers that
// manage the connection themselves.
func New(db *sql.DB, driver, table string) *Store {
	return &Store{db: db, driver: driver, table: table}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the target table and its unique index when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	id := "id SERIAL PRIMARY KEY"
	if s.driver == database.DriverSQLite {
		id = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s,
		source TEXT NOT NULL,
		item_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP,
		json TEXT NOT NULL,
		dataupdate_id BIGINT NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE
	)`, s.table, id)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return database.ClassifyDatabaseError(err, "schema")
	}

	index := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s_source_item_id ON %s (source, item_id)",
		s.table, s.table)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return database.ClassifyDatabaseError(err, "schema")
	}
	return nil
}

// NextDataUpdateID returns the next run identifier: one past the highest
// identifier already stored.
func (s *Store) NextDataUpdateID(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(dataupdate_id), 0) + 1 FROM %s", s.table)
	var next int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&next); err != nil {
		return 0, database.ClassifyDatabaseError(err, "dataupdate_id")
	}
	return next, nil
}

// UpsertBatch writes one batch of records for source. Per-record failures
// (missing id, unparseable payload, write error) are logged and counted
// without aborting the rest of the batch. Returns the succeeded and failed
// counts.
func (s *Store) UpsertBatch(ctx context.Context, source string, dataUpdateID int64, records []pull.Record) (succeeded, failed int) {
	for _, rec := range records {
		if err := s.upsertOne(ctx, source, dataUpdateID, rec); err != nil {
			failed++
			logger.Logger.Warn("record write failed",
				"source", source,
				"error", err)
			continue
		}
		succeeded++
	}
	return succeeded, failed
}

// upsertOne extracts row values from one record and writes it.
// On conflict only title and json are updated; created_at,
// dataupdate_id, and the deletion flag keep their first-write values.
func (s *Store) upsertOne(ctx context.Context, source string, dataUpdateID int64, rec pull.Record) error {
	itemID := extractItemID(rec)
	if itemID == "" {
		return fmt.Errorf("record has no usable id")
	}

	title := extractTitle(rec)
	createdAt, err := extractCreatedAt(rec)
	if err != nil {
		return fmt.Errorf("record %s: %w", itemID, err)
	}
	deleted, _ := rec["deleted"].(bool)

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record %s is not JSON-encodable: %w", itemID, err)
	}

	args := append([]interface{}{s.table}, s.placeholders(7)...)
	query := fmt.Sprintf(`INSERT INTO %s (source, item_id, title, created_at, json, dataupdate_id, deleted)
		VALUES (%s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (source, item_id) DO UPDATE SET
			title = excluded.title,
			json = excluded.json`,
		args...)

	_, err = s.db.ExecContext(ctx, query,
		source, itemID, title, createdAt, string(payload), dataUpdateID, deleted)
	if err != nil {
		return database.ClassifyDatabaseError(err, "upsert")
	}
	return nil
}

// markDeletedChunkSize bounds the placeholder count per statement so
// large keep sets stay under driver parameter limits (sqlite3 defaults
// to 999 bound parameters).
const markDeletedChunkSize = 500

// MarkDeletedExcept flags every stored row of source whose item id is not
// in keep, returning the number of rows flagged. An empty keep set flags
// everything for the source.
//
// The survivor check runs in memory and the updates run in bounded
// chunks, so the keep set can be arbitrarily large.
func (s *Store) MarkDeletedExcept(ctx context.Context, source string, keep []string) (int64, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	query := fmt.Sprintf(
		"SELECT item_id FROM %s WHERE source = %s AND deleted = FALSE",
		s.table, database.FormatPlaceholder(s.driver, 1))
	rows, err := s.db.QueryContext(ctx, query, source)
	if err != nil {
		return 0, database.ClassifyDatabaseError(err, "mark_deleted")
	}
	defer rows.Close()

	var doomed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, database.ClassifyDatabaseError(err, "mark_deleted")
		}
		if !keepSet[id] {
			doomed = append(doomed, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, database.ClassifyDatabaseError(err, "mark_deleted")
	}
	// Release the connection before issuing updates; sqlite runs with a
	// single pooled connection
	rows.Close()

	var flagged int64
	for start := 0; start < len(doomed); start += markDeletedChunkSize {
		end := start + markDeletedChunkSize
		if end > len(doomed) {
			end = len(doomed)
		}
		n, err := s.markDeleted(ctx, source, doomed[start:end])
		if err != nil {
			return flagged, err
		}
		flagged += n
	}
	return flagged, nil
}

// markDeleted flags one bounded chunk of item ids for source.
func (s *Store) markDeleted(ctx context.Context, source string, ids []string) (int64, error) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, source)
	for i, id := range ids {
		placeholders[i] = database.FormatPlaceholder(s.driver, i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(
		"UPDATE %s SET deleted = TRUE WHERE source = %s AND item_id IN (%s)",
		s.table, database.FormatPlaceholder(s.driver, 1), strings.Join(placeholders, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, database.ClassifyDatabaseError(err, "mark_deleted")
	}
	flagged, err := res.RowsAffected()
	if err != nil {
		return 0, database.ClassifyDatabaseError(err, "mark_deleted")
	}
	return flagged, nil
}

// Count returns the number of stored rows for source (all rows when
// source is empty). Used by tests and the dry-run summary.
func (s *Store) Count(ctx context.Context, source string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	args := []interface{}{}
	if source != "" {
		query += fmt.Sprintf(" WHERE source = %s", database.FormatPlaceholder(s.driver, 1))
		args = append(args, source)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, database.ClassifyDatabaseError(err, "count")
	}
	return n, nil
}

// Payload returns the stored JSON payload for one row.
func (s *Store) Payload(ctx context.Context, source, itemID string) (string, error) {
	query := fmt.Sprintf("SELECT json FROM %s WHERE source = %s AND item_id = %s",
		s.table,
		database.FormatPlaceholder(s.driver, 1),
		database.FormatPlaceholder(s.driver, 2))
	var payload string
	if err := s.db.QueryRowContext(ctx, query, source, itemID).Scan(&payload); err != nil {
		return "", database.ClassifyDatabaseError(err, "select")
	}
	return payload, nil
}

// placeholders returns n driver placeholders as fmt arguments.
func (s *Store) placeholders(n int) []interface{} {
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = database.FormatPlaceholder(s.driver, i+1)
	}
	return out
}

// extractItemID lifts the record id as a string. Numeric ids are
// formatted without a fractional part.
func extractItemID(rec pull.Record) string {
	switch id := rec["id"].(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	case int64:
		return fmt.Sprintf("%d", id)
	case int:
		return fmt.Sprintf("%d", id)
	default:
		return ""
	}
}

// extractTitle lifts the display title, falling back to subject.
func extractTitle(rec pull.Record) string {
	if title, ok := rec["title"].(string); ok {
		return title
	}
	if subject, ok := rec["subject"].(string); ok {
		return subject
	}
	return ""
}

// extractCreatedAt parses the record's creation timestamp. A missing
// value is an error; the row would be unusable for windowed queries.
func extractCreatedAt(rec pull.Record) (time.Time, error) {
	raw, ok := rec["created_at"].(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("missing created_at")
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable created_at %q", raw)
}
