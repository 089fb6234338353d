package actions

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/pullsync/runtime/internal/config"
	"github.com/pullsync/runtime/internal/logger"
)

// scriptFuncName is the entry point a script rule must define.
const scriptFuncName = "transform"

// buildScriptFunc compiles a JavaScript transform from rule.Params["source"].
// The script must define transform(value, field) returning the new value.
// Compile failures skip the rule with a log line; runtime failures are
// reported per leaf by the transformer.
func buildScriptFunc(rule config.ActionRule) TransformFunc {
	source, _ := rule.Params["source"].(string)
	if source == "" {
		logger.Logger.Warn("script rule has no source, skipping")
		return nil
	}

	rt := goja.New()
	if _, err := rt.RunString(source); err != nil {
		logger.Logger.Warn("script rule failed to compile, skipping",
			"error", err)
		return nil
	}

	fn, ok := goja.AssertFunction(rt.Get(scriptFuncName))
	if !ok {
		logger.Logger.Warn("script rule does not define transform(value, field), skipping")
		return nil
	}

	// goja runtimes are not safe for concurrent use
	var mu sync.Mutex

	return func(value, field string) (string, error) {
		mu.Lock()
		defer mu.Unlock()

		res, err := fn(goja.Undefined(), rt.ToValue(value), rt.ToValue(field))
		if err != nil {
			return value, fmt.Errorf("script transform: %w", err)
		}
		out := res.Export()
		str, ok := out.(string)
		if !ok {
			return value, fmt.Errorf("script transform returned %T, want string", out)
		}
		return str, nil
	}
}
