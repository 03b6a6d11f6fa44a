package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSONSchema validates values against a JSON Schema document and decodes
// them into T.
type JSONSchema[T any] struct {
	resolved *jsonschema.Resolved
}

// JSON compiles a JSON Schema document.
func JSON[T any](document []byte) (*JSONSchema[T], error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(document, &s); err != nil {
		return nil, fmt.Errorf("parsing json schema: %w", err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving json schema: %w", err)
	}
	return &JSONSchema[T]{resolved: resolved}, nil
}

// MustJSON is JSON for package-level schema declarations.
func MustJSON[T any](document string) *JSONSchema[T] {
	s, err := JSON[T]([]byte(document))
	if err != nil {
		panic(err)
	}
	return s
}

func (s *JSONSchema[T]) Validate(value any) (any, error) {
	if err := s.resolved.Validate(value); err != nil {
		return nil, &ValidationError{Issues: []Issue{{Message: err.Error()}}}
	}
	out, err := decodeInto[T](value, false)
	if err != nil {
		return nil, err
	}
	return out, nil
}
