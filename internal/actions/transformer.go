package actions

import (
	"github.com/pullsync/runtime/internal/errhandling"
	"github.com/pullsync/runtime/internal/logger"
	"github.com/pullsync/runtime/pkg/pull"
)

// Apply runs the compiled transforms over every string leaf of rec and
// returns a new record with the same shape. The input record is not
// modified. A failing transform logs and keeps the best value produced so
// far for that leaf; it never drops the record.
func Apply(m *Map, rec pull.Record) pull.Record {
	if m.Empty() {
		return rec
	}
	return applyMap(m, rec)
}

func applyMap(m *Map, in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		out[key] = applyValue(m, key, value)
	}
	return out
}

// applyValue transforms one value. Nested maps recurse with their own
// keys; list elements keep the parent key so that a rule on "comments"
// reaches each comment string.
func applyValue(m *Map, field string, value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return applyString(m, field, v)
	case map[string]interface{}:
		return applyMap(m, v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = applyValue(m, field, item)
		}
		return out
	default:
		// Numbers, booleans, nulls pass through untouched
		return value
	}
}

func applyString(m *Map, field, value string) string {
	funcs := m.funcsFor(field)
	for _, fn := range funcs {
		next, err := fn(value, field)
		if err != nil {
			logger.Logger.Warn("transform failed, keeping current value",
				"field", field,
				"error", errhandling.NewTransformError(field, err))
			continue
		}
		value = next
	}
	return value
}
