package anonymize

import (
	"regexp"
	"strings"
)

// emailPattern matches email-like substrings. Deliberately permissive:
// candidates are trimmed and length-checked before redaction.
var emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)

// trimCutset is the surrounding punctuation stripped from raw matches so
// that trailing sentence punctuation is not hashed into the token.
const trimCutset = ".,;:!?()[]{}<>\"'"

// Emails replaces every email address in text with a deterministic token.
// Matches containing any blacklisted substring (case-insensitive) are kept
// as-is, as are matches shorter than the configured minimum length. All
// occurrences of a matched address are replaced, including those outside
// the original match positions.
func Emails(text string, cfg Config, blacklist []string) string {
	if text == "" {
		return text
	}

	matches := emailPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return text
	}

	seen := make(map[string]bool, len(matches))
	for _, raw := range matches {
		addr := strings.Trim(raw, trimCutset)
		if len(addr) < cfg.minLength() || seen[addr] {
			continue
		}
		seen[addr] = true
		if isBlacklisted(addr, blacklist) {
			continue
		}
		text = strings.ReplaceAll(text, addr, Token(cfg.SecretKey, addr))
	}

	return text
}

// isBlacklisted reports whether value contains any of the patterns,
// case-insensitively.
func isBlacklisted(value string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	lower := strings.ToLower(value)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
