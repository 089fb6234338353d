package runtime

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/pullsync/runtime/internal/logger"
	"github.com/pullsync/runtime/pkg/pull"
)

// recordFilter drops records a configured boolean expression rejects.
// The expression sees the record under the "record" variable, e.g.
// `record.status != "closed"`.
type recordFilter struct {
	source  string
	program *vm.Program
}

// compileFilter compiles a filter expression, or returns nil for the
// empty expression (no filtering).
func compileFilter(source, expression string) (*recordFilter, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := expr.Compile(expression,
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}
	return &recordFilter{source: source, program: program}, nil
}

// keep reports whether rec passes the filter. Evaluation errors fail
// open: the record is kept and the error logged, so a bad expression
// cannot silently drop a whole source.
func (f *recordFilter) keep(rec pull.Record) bool {
	if f == nil {
		return true
	}
	out, err := expr.Run(f.program, map[string]interface{}{"record": map[string]interface{}(rec)})
	if err != nil {
		logger.Logger.Warn("filter expression failed, keeping record",
			"source", f.source,
			"error", err)
		return true
	}
	pass, ok := out.(bool)
	if !ok {
		return true
	}
	return pass
}
