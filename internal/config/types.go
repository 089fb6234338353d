// Package config provides functionality for parsing and validating
// pull configuration files (YAML/JSON).
package config

import (
	"fmt"
	"strings"
)

// Config is the fully converted run configuration.
// It is built once per run and is read-only thereafter.
type Config struct {
	// Target is the relational store the pulled items are written to
	Target TargetConfig

	// Watermark configures incremental pull state persistence
	Watermark WatermarkConfig

	// Anonymization configures the PII transforms
	Anonymization AnonymizationConfig

	// Retrievers is the ordered list of configured sources
	Retrievers []RetrieverConfig
}

// TargetConfig holds the database connection parameters.
type TargetConfig struct {
	// Driver is the sql driver name ("postgres" or "sqlite3").
	// Defaults from the DSN scheme when empty.
	Driver string

	// DSN is the connection string
	DSN string

	// Table is the destination table name (default "rawitem")
	Table string
}

// WatermarkConfig controls watermark persistence and overlap.
type WatermarkConfig struct {
	// Path is the watermark file path (default "pull_history.txt")
	Path string

	// OverlapMinutes is subtracted from the stored watermark at read time to
	// tolerate clock skew and late writes (default 30)
	OverlapMinutes int

	// LookbackHours is the default window when no watermark exists (default 24)
	LookbackHours int
}

// AnonymizationConfig holds process-wide anonymization parameters.
type AnonymizationConfig struct {
	// SecretKey is the keyed-hash secret. Never logged.
	SecretKey string

	// MinTokenLength is the minimum matched-value length eligible for
	// redaction (default 3)
	MinTokenLength int

	// Region is the default phone-number region (default "US")
	Region string
}

// RetrieverConfig describes one configured source.
type RetrieverConfig struct {
	// SourceName identifies rows written by this source
	SourceName string

	// Type is the adapter type (zendesk_tickets, zendesk_articles, jira)
	Type string

	// Enabled gates the source; disabled sources are skipped entirely
	Enabled bool

	// Credentials holds adapter-specific authentication values
	Credentials map[string]string

	// Params holds adapter-specific parameters (subdomain, locale, projects, ...)
	Params map[string]interface{}

	// MaxItems caps the number of items pulled (0 = unlimited; used for testing)
	MaxItems int

	// Filter is an optional expression evaluated per record; records for
	// which it returns false are dropped before transform and persistence
	Filter string

	// PostRetrievalActions is the ordered list of declarative transform rules
	PostRetrievalActions []ActionRule
}

// ActionRule is one declarative post-retrieval transform rule.
type ActionRule struct {
	// Function is the transform function name (anonymize_emails, ...).
	// Unknown names are skipped, not an error: forward-compatible config.
	Function string

	// ApplyToAll registers the rule under the wildcard field key
	ApplyToAll bool

	// Fields lists the field names the rule applies to when not ApplyToAll
	Fields []string

	// BlacklistedPatterns are substrings whose matches are never redacted
	BlacklistedPatterns []string

	// BlacklistedFields are field names that must never be transformed,
	// regardless of matching rules
	BlacklistedFields []string

	// Params holds function-specific parameters (e.g. script source)
	Params map[string]interface{}
}

// ParseError represents a parsing error with location information.
type ParseError struct {
	// Path is the file path where the error occurred
	Path string
	// Line is the line number (1-based, 0 if unknown)
	Line int
	// Message is the error message
	Message string
	// Type categorizes the error (syntax, io, format)
	Type string
}

// Error implements the error interface.
func (e ParseError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d: ", e.Line))
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// ValidationError represents a schema validation error.
type ValidationError struct {
	// Path is the instance path where the error occurred (e.g. "/Retrievers/0/type")
	Path string
	// Message is the error message
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Result contains the combined result of parsing and validation.
type Result struct {
	// Data contains the parsed configuration as a generic map
	Data map[string]interface{}
	// ParseErrors contains parsing errors
	ParseErrors []ParseError
	// ValidationErrors contains schema validation errors
	ValidationErrors []ValidationError
	// FilePath is the path to the configuration file
	FilePath string
}

// IsValid returns true if no errors occurred.
func (r *Result) IsValid() bool {
	return len(r.ParseErrors) == 0 && len(r.ValidationErrors) == 0
}

// AllErrors returns all errors (parsing and validation) as a single slice.
func (r *Result) AllErrors() []error {
	errs := make([]error, 0, len(r.ParseErrors)+len(r.ValidationErrors))
	for _, e := range r.ParseErrors {
		errs = append(errs, e)
	}
	for _, e := range r.ValidationErrors {
		errs = append(errs, e)
	}
	return errs
}

// Parse error type constants.
const (
	ErrorTypeIO     = "io"
	ErrorTypeSyntax = "syntax"
	ErrorTypeFormat = "format"
)
