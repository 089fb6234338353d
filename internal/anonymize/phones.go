package anonymize

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// phoneCandidate matches digit runs that could be phone numbers, with
// optional leading +, separators, and parentheses. Candidates are then
// validated with the phone-number library so that order numbers and ids
// are not redacted.
var phoneCandidate = regexp.MustCompile(`\+?[\d][\d\s().\-]{6,}\d`)

// DefaultRegion is assumed for candidates without an international prefix.
const DefaultRegion = "US"

// Phones replaces every valid phone number in text with a deterministic
// token. Candidates are parsed against cfg.Region (or DefaultRegion) and
// only numbers the library considers valid are redacted. Blacklisted
// substrings and too-short matches are kept as-is.
func Phones(text string, cfg Config, blacklist []string) string {
	if text == "" {
		return text
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	matches := phoneCandidate.FindAllString(text, -1)
	if len(matches) == 0 {
		return text
	}

	seen := make(map[string]bool, len(matches))
	for _, raw := range matches {
		candidate := strings.TrimSpace(raw)
		if len(candidate) < cfg.minLength() || seen[candidate] {
			continue
		}
		seen[candidate] = true
		if isBlacklisted(candidate, blacklist) {
			continue
		}

		num, err := phonenumbers.Parse(candidate, region)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			continue
		}

		text = strings.ReplaceAll(text, candidate, Token(cfg.SecretKey, candidate))
	}

	return text
}
