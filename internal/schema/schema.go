// Package schema holds the payload validation capability used by the engine.
//
// A Schema receives the decoded (and unwrapped) JSON value and either returns
// the typed value handed to handlers or a *ValidationError.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Schema validates a decoded JSON value and returns its typed form.
type Schema interface {
	Validate(value any) (any, error)
}

// Func adapts a plain function to Schema.
type Func func(value any) (any, error)

func (f Func) Validate(value any) (any, error) {
	return f(value)
}

// Set maps event type names to their payload schema.
type Set map[string]Schema

// Lookup returns the schema registered for eventType.
func (s Set) Lookup(eventType string) (Schema, bool) {
	if s == nil {
		return nil, false
	}
	sc, ok := s[eventType]
	return sc, ok && sc != nil
}

// Issue is one reason a payload was rejected.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ValidationError is the structured failure returned by every Schema in
// this package.
type ValidationError struct {
	Issues []Issue `json:"issues"`
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "payload does not match schema"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Path != "" {
			parts = append(parts, issue.Path+": "+issue.Message)
			continue
		}
		parts = append(parts, issue.Message)
	}
	return "payload does not match schema: " + strings.Join(parts, "; ")
}

// AsValidationError wraps any error into a *ValidationError, keeping one that
// already is.
func AsValidationError(err error) *ValidationError {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return &ValidationError{Issues: []Issue{{Message: err.Error()}}}
}

// Any accepts every value unchanged.
func Any() Schema {
	return Func(func(value any) (any, error) {
		return value, nil
	})
}

// Decode returns a schema that only checks the value decodes into T. Unknown
// fields are rejected when strict is true.
func Decode[T any](strict bool) Schema {
	return Func(func(value any) (any, error) {
		out, err := decodeInto[T](value, strict)
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

func decodeInto[T any](value any, strict bool) (T, error) {
	var out T
	data, err := json.Marshal(value)
	if err != nil {
		return out, &ValidationError{Issues: []Issue{{Message: fmt.Sprintf("encode payload: %v", err)}}}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&out); err != nil {
		return out, &ValidationError{Issues: []Issue{decodeIssue(err)}}
	}
	return out, nil
}

func decodeIssue(err error) Issue {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return Issue{
			Path:    typeErr.Field,
			Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
		}
	}
	return Issue{Message: err.Error()}
}
