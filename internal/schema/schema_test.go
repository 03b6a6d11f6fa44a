package schema

import (
	"errors"
	"strings"
	"testing"
)

type pushEvent struct {
	Ref  string `json:"ref"`
	Size int    `json:"size"`
}

const pushSchema = `{
	"type": "object",
	"required": ["ref"],
	"properties": {
		"ref": {"type": "string", "minLength": 1},
		"size": {"type": "integer"}
	}
}`

func TestJSONSchema_ValidPayload(t *testing.T) {
	s := MustJSON[pushEvent](pushSchema)

	got, err := s.Validate(map[string]any{"ref": "refs/heads/main", "size": float64(3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev, ok := got.(pushEvent)
	if !ok {
		t.Fatalf("expected pushEvent, got %T", got)
	}
	if ev.Ref != "refs/heads/main" {
		t.Errorf("Ref = %q, want %q", ev.Ref, "refs/heads/main")
	}
	if ev.Size != 3 {
		t.Errorf("Size = %d, want 3", ev.Size)
	}
}

func TestJSONSchema_MissingRequiredField(t *testing.T) {
	s := MustJSON[pushEvent](pushSchema)

	_, err := s.Validate(map[string]any{"size": float64(1)})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Issues) == 0 {
		t.Error("expected at least one issue")
	}
}

func TestJSON_InvalidDocument(t *testing.T) {
	if _, err := JSON[pushEvent]([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed schema document")
	}
}

func TestDecode_StrictRejectsUnknownFields(t *testing.T) {
	value := map[string]any{"ref": "main", "extra": true}

	if _, err := Decode[pushEvent](false).Validate(value); err != nil {
		t.Errorf("lenient decode failed: %v", err)
	}
	if _, err := Decode[pushEvent](true).Validate(value); err == nil {
		t.Error("strict decode should reject unknown field")
	}
}

func TestDecode_TypeMismatchReportsPath(t *testing.T) {
	_, err := Decode[pushEvent](false).Validate(map[string]any{"size": "big"})
	verr := AsValidationError(err)
	if verr == nil || len(verr.Issues) != 1 {
		t.Fatalf("expected one issue, got %v", err)
	}
	if verr.Issues[0].Path != "size" {
		t.Errorf("Path = %q, want %q", verr.Issues[0].Path, "size")
	}
	if !strings.Contains(verr.Error(), "size") {
		t.Errorf("Error() = %q, want it to mention the field", verr.Error())
	}
}

func TestSet_Lookup(t *testing.T) {
	set := Set{"push": Any(), "nil": nil}

	if _, ok := set.Lookup("push"); !ok {
		t.Error("push should be registered")
	}
	if _, ok := set.Lookup("nil"); ok {
		t.Error("nil schema should not count as registered")
	}
	var empty Set
	if _, ok := empty.Lookup("push"); ok {
		t.Error("nil set should not find anything")
	}
}

func TestAsValidationError_WrapsPlainErrors(t *testing.T) {
	verr := AsValidationError(errors.New("boom"))
	if verr.Issues[0].Message != "boom" {
		t.Errorf("Message = %q, want %q", verr.Issues[0].Message, "boom")
	}
	if AsValidationError(nil) != nil {
		t.Error("nil error should stay nil")
	}
}
