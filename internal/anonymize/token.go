// Package anonymize implements deterministic PII redaction for free-text
// fields. Matched values are replaced with keyed-hash tokens so that equal
// inputs map to equal tokens across runs without being reversible.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenPrefix marks redacted values so they are recognizable downstream.
const TokenPrefix = "MASKED_"

// DefaultMinTokenLength is the minimum matched-value length eligible for
// redaction. Shorter matches are left untouched to avoid mangling
// punctuation-adjacent fragments.
const DefaultMinTokenLength = 3

// Config holds the process-wide anonymization parameters.
type Config struct {
	// SecretKey is the keyed-hash secret. Never logged.
	SecretKey string

	// MinTokenLength is the minimum matched-value length eligible for
	// redaction (default 3)
	MinTokenLength int

	// Region is the default phone-number region (default "US")
	Region string
}

// minLength returns the effective minimum token length.
func (c Config) minLength() int {
	if c.MinTokenLength > 0 {
		return c.MinTokenLength
	}
	return DefaultMinTokenLength
}

// Token returns the deterministic replacement token for value.
// Equal (secret, value) pairs always produce the same token.
func Token(secret, value string) string {
	sum := sha256.Sum256([]byte(secret + value))
	return TokenPrefix + hex.EncodeToString(sum[:])
}
