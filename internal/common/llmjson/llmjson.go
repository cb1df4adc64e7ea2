// Package llmjson turns free-form generator output into validated JSON
// values. Generator responses have no contractual shape: they may be bare
// JSON, fenced JSON, or prose with an embedded object. Every stage decodes
// through this package instead of trusting the response.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ParseError reports that no JSON object could be decoded from the text.
type ParseError struct {
	Reason  string
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("llmjson: %s (near %q)", e.Reason, e.Snippet)
	}
	return fmt.Sprintf("llmjson: %s", e.Reason)
}

// SchemaError reports that decoded JSON violated the expected schema.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("llmjson: schema validation failed: %s", strings.Join(e.Violations, "; "))
}

// Extract isolates the JSON object from a raw generator response. Fenced
// blocks (``` with optional language tag) are unwrapped; otherwise the
// substring from the first '{' to the last '}' is taken. The result is not
// guaranteed to be valid JSON; Unmarshal decides that.
func Extract(text string) string {
	cleaned := strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		// Drop a language tag like "json" on the fence line.
		if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
			firstLine := strings.TrimSpace(cleaned[:idx])
			if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
				cleaned = cleaned[idx+1:]
			}
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	// Brace-boundary fallback: handles prose around the object and fences
	// the first pass failed to strip.
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start != -1 && end != -1 && end > start {
		cleaned = cleaned[start : end+1]
	}

	return strings.TrimSpace(cleaned)
}

// Unmarshal extracts the JSON object from text and decodes it into v.
// Failures come back as *ParseError; this function never panics on
// malformed generator output.
func Unmarshal(text string, v interface{}) error {
	extracted := Extract(text)
	if extracted == "" {
		return &ParseError{Reason: "empty response"}
	}

	if err := json.Unmarshal([]byte(extracted), v); err != nil {
		return &ParseError{Reason: err.Error(), Snippet: snippet(extracted)}
	}
	return nil
}

// ValidateSchema checks a decoded document against a JSON schema and
// returns a *SchemaError listing every violation.
func ValidateSchema(doc interface{}, schemaJSON string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaError{Violations: []string{err.Error()}}
	}

	if !result.Valid() {
		violations := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			violations[i] = desc.String()
		}
		return &SchemaError{Violations: violations}
	}

	return nil
}

// UnmarshalValidated decodes text into v after checking the extracted JSON
// against schemaJSON. The schema check runs on the raw decoded document so
// type mismatches are reported as schema violations, not decode errors.
func UnmarshalValidated(text string, v interface{}, schemaJSON string) error {
	extracted := Extract(text)
	if extracted == "" {
		return &ParseError{Reason: "empty response"}
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(extracted), &doc); err != nil {
		return &ParseError{Reason: err.Error(), Snippet: snippet(extracted)}
	}

	if err := ValidateSchema(doc, schemaJSON); err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(extracted), v); err != nil {
		return &ParseError{Reason: err.Error(), Snippet: snippet(extracted)}
	}
	return nil
}

func snippet(s string) string {
	if len(s) > 60 {
		return s[:60]
	}
	return s
}
