// Package config provides functionality for parsing and validating
// pull configuration files (YAML/JSON).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseConfig parses and validates a configuration file.
// YAML is the primary format; JSON parses as a YAML subset.
// Returns a Result with parsed data and any parse or validation errors.
func ParseConfig(filepath string) *Result {
	result := &Result{
		FilePath: filepath,
	}

	content, err := os.ReadFile(filepath)
	if err != nil {
		result.ParseErrors = append(result.ParseErrors, ParseError{
			Path:    filepath,
			Message: fmt.Sprintf("failed to read file: %v", err),
			Type:    ErrorTypeIO,
		})
		return result
	}

	parsed := ParseConfigString(string(content))
	result.Data = parsed.Data
	result.ParseErrors = parsed.ParseErrors
	result.ValidationErrors = parsed.ValidationErrors

	// Attach the file path to errors that lack one
	for i := range result.ParseErrors {
		if result.ParseErrors[i].Path == "" {
			result.ParseErrors[i].Path = filepath
		}
	}

	return result
}

// ParseConfigString parses and validates configuration content from a string.
func ParseConfigString(content string) *Result {
	result := &Result{}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		result.ParseErrors = append(result.ParseErrors, ParseError{
			Message: "empty content: expected YAML document",
			Type:    ErrorTypeSyntax,
		})
		return result
	}

	var data interface{}
	if err := yaml.Unmarshal([]byte(content), &data); err != nil {
		result.ParseErrors = append(result.ParseErrors, parseYAMLError(err))
		return result
	}

	if data == nil {
		// Comments-only document: valid YAML but not a valid config
		result.ParseErrors = append(result.ParseErrors, ParseError{
			Message: "empty document: expected YAML mapping",
			Type:    ErrorTypeFormat,
		})
		return result
	}

	dataMap, ok := data.(map[string]interface{})
	if !ok {
		result.ParseErrors = append(result.ParseErrors, ParseError{
			Message: fmt.Sprintf("invalid configuration: expected YAML mapping, got %T", data),
			Type:    ErrorTypeFormat,
		})
		return result
	}

	result.Data = dataMap

	validation := ValidateConfig(dataMap)
	result.ValidationErrors = validation

	return result
}

// parseYAMLError extracts detailed error information from a YAML unmarshaling error.
func parseYAMLError(err error) ParseError {
	parseErr := ParseError{
		Message: err.Error(),
		Type:    ErrorTypeSyntax,
	}

	if typeErr, ok := err.(*yaml.TypeError); ok {
		parseErr.Message = fmt.Sprintf("YAML type error: %s", strings.Join(typeErr.Errors, "; "))
	}

	// The yaml.v3 library includes line info in the error message
	// Format: "yaml: line X: ..."
	if strings.Contains(err.Error(), "yaml: line ") {
		var line int
		if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
			parseErr.Line = line
		}
	}

	return parseErr
}
