// Package observe fans request lifecycle events out to observers that can
// never influence how a request is processed.
package observe

import "time"

// Kind tags an observation event.
type Kind string

const (
	KindRequestReceived           Kind = "request_received"
	KindBodyTooLarge              Kind = "body_too_large"
	KindJSONParseFailed           Kind = "json_parse_failed"
	KindEventUnhandled            Kind = "event_unhandled"
	KindVerificationSucceeded     Kind = "verification_succeeded"
	KindVerificationFailed        Kind = "verification_failed"
	KindSchemaValidationSucceeded Kind = "schema_validation_succeeded"
	KindSchemaValidationFailed    Kind = "schema_validation_failed"
	KindHandlerStarted            Kind = "handler_started"
	KindHandlerSucceeded          Kind = "handler_succeeded"
	KindHandlerFailed             Kind = "handler_failed"
	KindCompleted                 Kind = "completed"
)

// Kinds lists every event kind in pipeline order.
var Kinds = []Kind{
	KindRequestReceived,
	KindBodyTooLarge,
	KindJSONParseFailed,
	KindEventUnhandled,
	KindVerificationSucceeded,
	KindVerificationFailed,
	KindSchemaValidationSucceeded,
	KindSchemaValidationFailed,
	KindHandlerStarted,
	KindHandlerSucceeded,
	KindHandlerFailed,
	KindCompleted,
}

// Event is one lifecycle notification. The common fields are set on every
// kind; the rest only on the kinds noted.
type Event struct {
	Kind         Kind      `json:"kind"`
	RequestID    string    `json:"request_id"`
	Provider     string    `json:"provider"`
	EventType    string    `json:"event_type,omitempty"`
	DeliveryID   string    `json:"delivery_id,omitempty"`
	RawBodyBytes int       `json:"raw_body_bytes"`
	StartTime    time.Time `json:"start_time"`
	ReceivedAt   time.Time `json:"received_at"`

	// body_too_large
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty"`

	// handler_*
	HandlerIndex int           `json:"handler_index,omitempty"`
	HandlerTime  time.Duration `json:"handler_duration_ns,omitempty"`

	// completed
	Status   int           `json:"status,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Success  bool          `json:"success"`

	// *_failed
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// WithErr attaches a failure cause and its message.
func (e Event) WithErr(err error) Event {
	e.Err = err
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
