// Package actions compiles declarative post-retrieval rules into transform
// pipelines and applies them to pulled records. Transforms operate on string
// leaves of arbitrarily nested records and always preserve record shape.
package actions

import (
	"github.com/pullsync/runtime/internal/anonymize"
	"github.com/pullsync/runtime/internal/config"
	"github.com/pullsync/runtime/internal/logger"
)

// WildcardField is the map key under which apply-to-all rules register.
const WildcardField = "_all"

// TransformFunc transforms one string value. field is the key the value
// was found under, for context-sensitive transforms.
type TransformFunc func(value, field string) (string, error)

// Map is a compiled set of transform rules for one source.
type Map struct {
	// byField maps field name (or WildcardField) to the ordered transforms
	// registered for it
	byField map[string][]TransformFunc

	// blacklistedFields are never transformed, regardless of matching rules
	blacklistedFields map[string]bool
}

// Empty reports whether the map holds no transforms.
func (m *Map) Empty() bool {
	return m == nil || len(m.byField) == 0
}

// funcsFor returns the transforms for field: wildcard rules first, then
// field-specific ones, each group in declaration order.
func (m *Map) funcsFor(field string) []TransformFunc {
	if m == nil || m.blacklistedFields[field] {
		return nil
	}
	direct := m.byField[field]
	wild := m.byField[WildcardField]
	if len(wild) == 0 {
		return direct
	}
	if len(direct) == 0 {
		return wild
	}
	out := make([]TransformFunc, 0, len(wild)+len(direct))
	out = append(out, wild...)
	out = append(out, direct...)
	return out
}

// Compile builds a transform map from the configured rules. Rules naming
// unknown functions are skipped with a log line rather than failing the
// source, so configs stay forward-compatible.
func Compile(rules []config.ActionRule, cfg anonymize.Config) *Map {
	m := &Map{
		byField:           make(map[string][]TransformFunc),
		blacklistedFields: make(map[string]bool),
	}

	for _, rule := range rules {
		fn := buildFunc(rule, cfg)
		if fn == nil {
			// Unknown name or unusable script rule; already logged
			continue
		}

		for _, field := range rule.BlacklistedFields {
			m.blacklistedFields[field] = true
		}

		if rule.ApplyToAll {
			m.byField[WildcardField] = append(m.byField[WildcardField], fn)
			continue
		}
		for _, field := range rule.Fields {
			m.byField[field] = append(m.byField[field], fn)
		}
	}

	return m
}

// buildFunc resolves a rule to a TransformFunc, or nil for unknown names.
func buildFunc(rule config.ActionRule, cfg anonymize.Config) TransformFunc {
	blacklist := rule.BlacklistedPatterns

	switch rule.Function {
	case "anonymize_emails":
		return func(value, _ string) (string, error) {
			return anonymize.Emails(value, cfg, blacklist), nil
		}
	case "anonymize_phone_numbers":
		return func(value, _ string) (string, error) {
			return anonymize.Phones(value, cfg, blacklist), nil
		}
	case "script":
		return buildScriptFunc(rule)
	default:
		logger.Logger.Warn("skipping unknown transform function",
			"function", rule.Function)
		return nil
	}
}
