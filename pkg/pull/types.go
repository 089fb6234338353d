// Package pull provides public types for incremental pull runs.
// This package is intended to be importable by external projects that need
// to inspect the results of a Pullsync run.
package pull

import "time"

// Record is one pulled item as returned by a source adapter.
// It is an arbitrarily nested JSON-like structure; every record carries at
// minimum an identifier, a title-like field, a creation timestamp, and a
// deletion flag.
type Record = map[string]interface{}

// Source execution statuses.
const (
	// StatusSuccess means the source was drained without errors.
	StatusSuccess = "success"

	// StatusPartial means pulling stopped mid-stream but earlier batches
	// were already written.
	StatusPartial = "partial"

	// StatusSkipped means the source was disabled, its type unknown, or
	// its adapter could not be constructed.
	StatusSkipped = "skipped"

	// StatusFailed means the source produced no successfully written items.
	StatusFailed = "failed"
)

// SourceError contains details about a per-source failure.
type SourceError struct {
	// Code is the error category (authentication, server, ...)
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`
}

// SourceResult represents the outcome of pulling one configured source.
type SourceResult struct {
	// Source is the configured source name
	Source string `json:"source"`

	// Type is the adapter type (zendesk_tickets, jira, ...)
	Type string `json:"type"`

	// Status is one of StatusSuccess, StatusPartial, StatusSkipped, StatusFailed
	Status string `json:"status"`

	// Batches is the number of batches fetched from the source
	Batches int `json:"batches"`

	// Succeeded is the number of items written successfully
	Succeeded int `json:"succeeded"`

	// Failed is the number of items that failed transform or persistence
	Failed int `json:"failed"`

	// Filtered is the number of items dropped by the source's filter expression
	Filtered int `json:"filtered,omitempty"`

	// Deleted is the number of rows marked deleted by deletion reconciliation
	Deleted int64 `json:"deleted,omitempty"`

	// Error holds the failure that stopped pulling, if any
	Error *SourceError `json:"error,omitempty"`
}

// RunResult represents the outcome of a full pull run across all sources.
type RunResult struct {
	// StartedAt is when the run started
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when the run completed
	CompletedAt time.Time `json:"completedAt"`

	// Since is the effective start watermark used for incremental pulling
	// (overlap window already subtracted)
	Since time.Time `json:"since"`

	// DataUpdateID is the generation id assigned to rows written by this run
	DataUpdateID int `json:"dataUpdateId"`

	// Sources holds one result per configured source, in declaration order
	Sources []SourceResult `json:"sources"`

	// Succeeded is the run-wide count of items written successfully
	Succeeded int `json:"succeeded"`

	// Failed is the run-wide count of items that failed
	Failed int `json:"failed"`

	// WatermarkCommitted indicates whether the watermark was persisted
	WatermarkCommitted bool `json:"watermarkCommitted"`
}
