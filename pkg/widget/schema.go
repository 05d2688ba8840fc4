package widget

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema documents understood by SchemaValidator.
const (
	SchemaConfig      = "config.json"
	SchemaSettings    = "settings.json"
	SchemaTestimonial = "testimonial.json"

	schemaBaseURL = "https://schemas.proofflow.dev/widget/"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// SchemaValidator compiles the embedded JSON schemas once and validates raw payloads against them.
type SchemaValidator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator builds a validator backed by jsonschema v5.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// ValidateConfig checks a complete widget configuration document.
func (validator *SchemaValidator) ValidateConfig(payload []byte) error {
	return validator.Validate(SchemaConfig, payload)
}

// Validate checks payload against the named schema. Failures wrap ErrInvalidConfig.
func (validator *SchemaValidator) Validate(schemaName string, payload []byte) error {
	schema, err := validator.schemaFor(schemaName)
	if err != nil {
		return err
	}
	var document any
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidConfig, schemaName, err)
	}
	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, schemaName, err)
	}
	return nil
}

// ValidateValue marshals value and validates the result against the named schema.
func (validator *SchemaValidator) ValidateValue(schemaName string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("widget: marshal %s: %w", schemaName, err)
	}
	return validator.Validate(schemaName, payload)
}

func (validator *SchemaValidator) schemaFor(schemaName string) (*jsonschema.Schema, error) {
	validator.mu.RLock()
	schema, ok := validator.compiled[schemaName]
	validator.mu.RUnlock()
	if ok {
		return schema, nil
	}

	compiler := jsonschema.NewCompiler()
	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("widget: list schemas: %w", err)
	}
	for _, entry := range entries {
		data, readErr := schemaFiles.ReadFile("schemas/" + entry.Name())
		if readErr != nil {
			return nil, fmt.Errorf("widget: read schema %s: %w", entry.Name(), readErr)
		}
		if addErr := compiler.AddResource(schemaBaseURL+entry.Name(), bytes.NewReader(data)); addErr != nil {
			return nil, fmt.Errorf("widget: load schema %s: %w", entry.Name(), addErr)
		}
	}
	compiled, err := compiler.Compile(schemaBaseURL + schemaName)
	if err != nil {
		return nil, fmt.Errorf("widget: compile schema %s: %w", schemaName, err)
	}

	validator.mu.Lock()
	validator.compiled[schemaName] = compiled
	validator.mu.Unlock()
	return compiled, nil
}
