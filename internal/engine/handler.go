package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Priya8975/webhook-ingest/internal/domain"
)

// Handler processes one validated payload. Returning an error (or
// panicking) fails the delivery with 500 and skips later handlers.
type Handler func(ctx context.Context, payload any, hc *domain.HandlerContext) error

// On adapts a typed handler. The validated payload is used directly when
// it already has type T; otherwise it is converted through JSON.
func On[T any](fn func(ctx context.Context, payload T, hc *domain.HandlerContext) error) Handler {
	return func(ctx context.Context, payload any, hc *domain.HandlerContext) error {
		typed, err := As[T](payload)
		if err != nil {
			return err
		}
		return fn(ctx, typed, hc)
	}
}

// As converts a validated payload to T.
func As[T any](payload any) (T, error) {
	var out T
	switch v := payload.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("encoding %T payload: %w", payload, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("converting %T payload to %T: %w", payload, out, err)
	}
	return out, nil
}

// ErrorInfo describes a schema or handler failure reported to the error
// hook.
type ErrorInfo struct {
	Err        error
	Provider   string
	EventType  string
	DeliveryID string
	// Payload is the unwrapped, unvalidated value.
	Payload any
	// HandlerIndex is the failing handler's position, or -1 for schema
	// failures.
	HandlerIndex int
	// Context is nil for schema failures.
	Context *domain.HandlerContext
}

// VerificationFailure describes a rejected signature.
type VerificationFailure struct {
	Err        error
	Provider   string
	EventType  string
	DeliveryID string
	Headers    map[string]string
	Reason     string
}

type (
	ErrorHook              func(ctx context.Context, info ErrorInfo)
	VerificationFailedHook func(ctx context.Context, failure VerificationFailure)
)
