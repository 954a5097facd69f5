// Package schema validates moderation responses against a JSON Schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed moderation_response.json
var moderationResponse []byte

// ModerationResponse returns the raw embedded schema document.
func ModerationResponse() []byte {
	return bytes.Clone(moderationResponse)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validator checks JSON documents against a compiled schema. It is safe for
// concurrent use.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// NewModerationValidator compiles the embedded moderation response schema.
func NewModerationValidator() (*Validator, error) {
	return Compile("moderation_response.json", bytes.NewReader(moderationResponse))
}

// Load compiles the schema stored at path.
func Load(path string) (*Validator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema: %w", err)
	}
	defer f.Close()
	return Compile(path, f)
}

// Compile compiles a schema read from r. name identifies the schema in
// error messages.
func Compile(name string, r io.Reader) (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(name, r); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &Validator{name: name, schema: compiled}, nil
}

// Name returns the schema identifier.
func (v *Validator) Name() string {
	return v.name
}

// Validate checks body against the schema. It returns nil when the body
// conforms, an "invalid JSON" error when it cannot be decoded, and
// ValidationErrors otherwise.
func (v *Validator) Validate(body []byte) error {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	if validationErr, ok := err.(*jsonschema.ValidationError); ok {
		return extractValidationErrors(validationErr)
	}
	return ValidationErrors{err}
}

// extractValidationErrors flattens the leaf causes of a validation error
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		return ValidationErrors{fmt.Errorf("%s: %s", location, err.Message)}
	}

	var errs ValidationErrors
	for _, cause := range err.Causes {
		errs = append(errs, extractValidationErrors(cause)...)
	}
	return errs
}
