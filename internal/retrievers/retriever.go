// Package retrievers provides implementations for source adapters.
// Retrievers are responsible for fetching record batches from upstream
// ticketing systems incrementally.
package retrievers

import (
	"context"
	"errors"
	"time"

	"github.com/pullsync/runtime/pkg/pull"
)

// ErrExhausted is returned by Next when the source has no more batches
// for the requested window.
var ErrExhausted = errors.New("source exhausted")

// Params carries the per-run settings a retriever is constructed with.
type Params struct {
	// Source identifies the rows written by this retriever
	Source string

	// StartTime is the lower bound of the pull window
	StartTime time.Time

	// IgnoreDeleted skips upstream deletion handling entirely
	IgnoreDeleted bool

	// MaxItems caps the number of items pulled (0 = unlimited)
	MaxItems int

	// Credentials holds adapter-specific authentication values
	Credentials map[string]string

	// Extra holds adapter-specific parameters from the configuration
	Extra map[string]interface{}

	// UpdateFields, when non-empty, restricts which upstream fields an
	// adapter re-pulls for already-known items. Adapters without the
	// capability ignore it.
	UpdateFields []string
}

// Retriever pulls record batches from one upstream source.
//
// Next returns the next batch, or ErrExhausted when the window is fully
// drained. Implementations handle their own pagination and rate-limit
// backoff; any other error aborts the source.
type Retriever interface {
	Next(ctx context.Context) ([]pull.Record, error)
	Close() error
}

// DeletionStore is the store-side surface deletion sync needs.
type DeletionStore interface {
	// MarkDeletedExcept flags every stored row of source whose item id is
	// not in keep, returning the number of rows flagged.
	MarkDeletedExcept(ctx context.Context, source string, keep []string) (int64, error)
}

// DeletionSyncer is an optional capability: retrievers whose upstream
// cannot report deletions incrementally implement it to reconcile the
// store against a full upstream scan after the pull completes.
type DeletionSyncer interface {
	SyncDeletions(ctx context.Context, store DeletionStore) (int64, error)
}

// FieldUpdater is an optional capability: retrievers that can re-pull a
// restricted set of fields for known items implement it.
type FieldUpdater interface {
	SupportsFieldUpdates() bool
}
