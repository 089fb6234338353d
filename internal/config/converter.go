// Package config provides functionality for parsing and validating
// pull configuration files (YAML/JSON).
package config

import (
	"fmt"
)

// Defaults applied during conversion.
const (
	DefaultTable          = "rawitem"
	DefaultWatermarkPath  = "pull_history.txt"
	DefaultOverlapMinutes = 30
	DefaultLookbackHours  = 24
	DefaultMinTokenLength = 3
	DefaultRegion         = "US"
)

// Convert converts a parsed and validated configuration map into a typed
// Config, applying defaults. Convert assumes schema validation already
// passed; unexpected shapes produce errors rather than panics.
func Convert(data map[string]interface{}) (*Config, error) {
	if data == nil {
		return nil, fmt.Errorf("configuration data is nil")
	}

	cfg := &Config{
		Target: TargetConfig{
			Table: DefaultTable,
		},
		Watermark: WatermarkConfig{
			Path:           DefaultWatermarkPath,
			OverlapMinutes: DefaultOverlapMinutes,
			LookbackHours:  DefaultLookbackHours,
		},
		Anonymization: AnonymizationConfig{
			MinTokenLength: DefaultMinTokenLength,
			Region:         DefaultRegion,
		},
	}

	target, ok := data["Target"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("required section 'Target' is missing or not a mapping")
	}
	if v, ok := target["driver"].(string); ok {
		cfg.Target.Driver = v
	}
	if v, ok := target["dsn"].(string); ok {
		cfg.Target.DSN = v
	}
	if cfg.Target.DSN == "" {
		return nil, fmt.Errorf("Target.dsn is required")
	}
	if v, ok := target["table"].(string); ok && v != "" {
		cfg.Target.Table = v
	}

	if wm, ok := data["Watermark"].(map[string]interface{}); ok {
		if v, ok := wm["path"].(string); ok && v != "" {
			cfg.Watermark.Path = v
		}
		if v, ok := toInt(wm["overlap_minutes"]); ok {
			cfg.Watermark.OverlapMinutes = v
		}
		if v, ok := toInt(wm["lookback_hours"]); ok {
			cfg.Watermark.LookbackHours = v
		}
	}

	if anon, ok := data["Anonymization"].(map[string]interface{}); ok {
		if v, ok := anon["secret_key"].(string); ok {
			cfg.Anonymization.SecretKey = v
		}
		if v, ok := toInt(anon["min_token_length"]); ok {
			cfg.Anonymization.MinTokenLength = v
		}
		if v, ok := anon["region"].(string); ok && v != "" {
			cfg.Anonymization.Region = v
		}
	}

	retrievers, ok := data["Retrievers"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("required section 'Retrievers' is missing or not a list")
	}
	for i, raw := range retrievers {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("Retrievers[%d] is not a mapping", i)
		}
		rc, err := convertRetriever(entry)
		if err != nil {
			return nil, fmt.Errorf("Retrievers[%d]: %w", i, err)
		}
		cfg.Retrievers = append(cfg.Retrievers, rc)
	}

	return cfg, nil
}

// convertRetriever converts one source entry.
func convertRetriever(entry map[string]interface{}) (RetrieverConfig, error) {
	rc := RetrieverConfig{}

	name, _ := entry["source_name"].(string)
	if name == "" {
		return rc, fmt.Errorf("source_name is required")
	}
	rc.SourceName = name

	typ, _ := entry["type"].(string)
	if typ == "" {
		return rc, fmt.Errorf("type is required")
	}
	rc.Type = typ

	if v, ok := entry["enabled"].(bool); ok {
		rc.Enabled = v
	}
	if v, ok := toInt(entry["max_items"]); ok {
		rc.MaxItems = v
	}
	if v, ok := entry["filter"].(string); ok {
		rc.Filter = v
	}

	if creds, ok := entry["credentials"].(map[string]interface{}); ok {
		rc.Credentials = make(map[string]string, len(creds))
		for k, v := range creds {
			if s, ok := v.(string); ok {
				rc.Credentials[k] = s
			}
		}
	}

	if params, ok := entry["params"].(map[string]interface{}); ok {
		rc.Params = params
	}

	if actions, ok := entry["post_retrieval_actions"].([]interface{}); ok {
		for i, rawRule := range actions {
			ruleMap, ok := rawRule.(map[string]interface{})
			if !ok {
				return rc, fmt.Errorf("post_retrieval_actions[%d] is not a mapping", i)
			}
			rule, err := convertActionRule(ruleMap)
			if err != nil {
				return rc, fmt.Errorf("post_retrieval_actions[%d]: %w", i, err)
			}
			rc.PostRetrievalActions = append(rc.PostRetrievalActions, rule)
		}
	}

	return rc, nil
}

// convertActionRule converts one post-retrieval action entry.
func convertActionRule(entry map[string]interface{}) (ActionRule, error) {
	rule := ActionRule{}

	fn, _ := entry["function"].(string)
	if fn == "" {
		return rule, fmt.Errorf("function is required")
	}
	rule.Function = fn

	if v, ok := entry["apply_to_all"].(bool); ok {
		rule.ApplyToAll = v
	}
	rule.Fields = toStringSlice(entry["fields"])
	rule.BlacklistedPatterns = toStringSlice(entry["blacklisted_patterns"])
	rule.BlacklistedFields = toStringSlice(entry["blacklisted_fields"])
	if params, ok := entry["params"].(map[string]interface{}); ok {
		rule.Params = params
	}

	return rule, nil
}

// toInt converts YAML/JSON scalar numbers to int.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// toStringSlice converts a YAML/JSON list to a string slice, dropping
// non-string entries.
func toStringSlice(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
