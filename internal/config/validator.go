// Package config provides functionality for parsing and validating
// pull configuration files (YAML/JSON).
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/pull-schema.json
var embeddedSchema []byte

// schemaOnce ensures thread-safe initialization of the compiled schema.
var schemaOnce sync.Once

// compiledSchema is the cached compiled schema.
var compiledSchema *jsonschema.Schema

// schemaInitErr stores any error from schema initialization.
var schemaInitErr error

const schemaURL = "https://pullsync.io/schemas/pull/v1.0.0/pull-schema.json"

// GetEmbeddedSchema returns the embedded pull configuration schema.
func GetEmbeddedSchema() []byte {
	return embeddedSchema
}

// getCompiledSchema returns the compiled JSON schema, compiling it if necessary.
// Thread-safe via sync.Once.
func getCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(embeddedSchema))
		if err != nil {
			schemaInitErr = fmt.Errorf("failed to parse embedded schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, schemaDoc); err != nil {
			schemaInitErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}

		compiledSchema, err = compiler.Compile(schemaURL)
		if err != nil {
			schemaInitErr = fmt.Errorf("failed to compile schema: %w", err)
		}
	})
	return compiledSchema, schemaInitErr
}

// ValidateConfig validates a parsed configuration against the embedded schema.
// The data is round-tripped through JSON so YAML scalar types line up with
// what the schema validator expects.
func ValidateConfig(data map[string]interface{}) []ValidationError {
	schema, err := getCompiledSchema()
	if err != nil {
		return []ValidationError{{Message: err.Error()}}
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return []ValidationError{{Message: fmt.Sprintf("configuration is not JSON-encodable: %v", err)}}
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return []ValidationError{{Message: fmt.Sprintf("configuration is not valid JSON: %v", err)}}
	}

	if err := schema.Validate(instance); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return flattenValidationError(verr)
		}
		return []ValidationError{{Message: err.Error()}}
	}

	return nil
}

// flattenValidationError flattens a nested validation error into leaf errors.
func flattenValidationError(verr *jsonschema.ValidationError) []ValidationError {
	if len(verr.Causes) == 0 {
		return []ValidationError{{
			Path:    "/" + strings.Join(verr.InstanceLocation, "/"),
			Message: verr.Error(),
		}}
	}

	var errs []ValidationError
	for _, cause := range verr.Causes {
		errs = append(errs, flattenValidationError(cause)...)
	}
	return errs
}
