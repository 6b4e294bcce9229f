package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/okian/factor/internal/domain/model"
)

//go:embed schema/message.schema.json
var defaultSchema []byte

// JSONSchema is a Predicate backed by a resolved JSON Schema (draft 2020-12).
// It is immutable after construction and safe for concurrent use.
type JSONSchema struct {
	resolved *jsonschema.Resolved
}

// DefaultSchema returns the predicate for the built-in message schema:
// a required non-empty string symbol, and optional numeric-or-string
// pe_ratio and roe. Other keys are allowed.
func DefaultSchema() (*JSONSchema, error) {
	return NewJSONSchema(defaultSchema)
}

// NewJSONSchema builds a predicate from a JSON schema document.
func NewJSONSchema(doc []byte) (*JSONSchema, error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrSchema, err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve: %w", ErrSchema, err)
	}
	return &JSONSchema{resolved: resolved}, nil
}

// LoadSchemaFile reads a schema from disk. Files ending in .yaml or .yml are
// parsed as YAML; everything else as JSON.
func LoadSchemaFile(path string) (*JSONSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrSchema, path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSchema, path, err)
		}
	}
	return NewJSONSchema(data)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Check reports whether payload satisfies the schema.
func (s *JSONSchema) Check(payload model.RawMessage) bool {
	return s.Explain(payload) == nil
}

// Explain returns the first schema violation, or nil.
func (s *JSONSchema) Explain(payload model.RawMessage) error {
	if payload == nil {
		return fmt.Errorf("payload is nil")
	}
	return s.resolved.Validate(map[string]any(payload))
}
