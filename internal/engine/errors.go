package engine

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodePayloadTooLarge   = "WEBHOOK_PAYLOAD_TOO_LARGE"
	TextCodeInvalidJSON       = "WEBHOOK_INVALID_JSON"
	TextCodeUnhandledEvent    = "WEBHOOK_UNHANDLED_EVENT"
	TextCodeSignatureInvalid  = "WEBHOOK_SIGNATURE_INVALID"
	TextCodeDuplicateDelivery = "WEBHOOK_DUPLICATE_DELIVERY"
	TextCodeSchemaInvalid     = "WEBHOOK_SCHEMA_INVALID"
	TextCodeHandlerFailed     = "WEBHOOK_HANDLER_FAILED"
	TextCodeReplayStoreFailed = "WEBHOOK_REPLAY_STORE_FAILED"
	TextCodeInternal          = "WEBHOOK_INTERNAL"
)

// Messages written into ResultBody.Error.
const (
	msgPayloadTooLarge   = "Payload too large"
	msgInvalidJSON       = "Invalid JSON"
	msgSignatureFailed   = "Signature verification failed"
	msgDuplicateDelivery = "Duplicate delivery"
	msgSchemaFailed      = "Schema validation failed"
	msgHandlerFailed     = "Handler failed"
	msgReplayUnavailable = "Replay store unavailable"
	msgInternal          = "Internal error"
)

func engineError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func engineWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return engineError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func errPayloadTooLarge(size int, limit int64) error {
	return engineError(
		"request body exceeds the configured limit",
		goerrors.CategoryBadInput,
		http.StatusRequestEntityTooLarge,
		TextCodePayloadTooLarge,
		map[string]any{"body_bytes": size, "max_body_bytes": limit},
	)
}

func errInvalidJSON(source error) error {
	return engineWrapError(
		source,
		goerrors.CategoryBadInput,
		"request body is not valid JSON",
		http.StatusBadRequest,
		TextCodeInvalidJSON,
		nil,
	)
}

func errUnhandledEvent(eventType string) error {
	return engineError(
		"no handler registered for event type",
		goerrors.CategoryBadInput,
		http.StatusNoContent,
		TextCodeUnhandledEvent,
		map[string]any{"event_type": eventType},
	)
}

func errSignatureInvalid(reason string) error {
	return engineError(
		reason,
		goerrors.CategoryAuth,
		http.StatusUnauthorized,
		TextCodeSignatureInvalid,
		nil,
	)
}

func errDuplicateDelivery(key string) error {
	return engineError(
		"delivery already processed or in flight",
		goerrors.CategoryConflict,
		http.StatusConflict,
		TextCodeDuplicateDelivery,
		map[string]any{"replay_key": key},
	)
}

func errSchemaInvalid(source error, eventType string) error {
	return engineWrapError(
		source,
		goerrors.CategoryValidation,
		"payload failed schema validation",
		http.StatusBadRequest,
		TextCodeSchemaInvalid,
		map[string]any{"event_type": eventType},
	)
}

func errHandlerFailed(source error, eventType string, index int) error {
	return engineWrapError(
		source,
		goerrors.CategoryOperation,
		"webhook handler failed",
		http.StatusInternalServerError,
		TextCodeHandlerFailed,
		map[string]any{"event_type": eventType, "handler_index": index},
	)
}

func errReplayStore(source error, key string) error {
	return engineWrapError(
		source,
		goerrors.CategoryExternal,
		"replay store unavailable",
		http.StatusInternalServerError,
		TextCodeReplayStoreFailed,
		map[string]any{"replay_key": key},
	)
}

func errInternal(source error) error {
	return engineWrapError(
		source,
		goerrors.CategoryInternal,
		"webhook processing failed",
		http.StatusInternalServerError,
		TextCodeInternal,
		nil,
	)
}

// TextCode returns the WEBHOOK_* code carried by err, or "".
func TextCode(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ""
	}
	return rich.TextCode
}

// Category returns the go-errors category carried by err, or "".
func Category(err error) goerrors.Category {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ""
	}
	return rich.Category
}
