package domain

import (
	"net/http"
	"strings"
	"time"
)

// Request is one inbound webhook delivery as handed over by an adapter.
// Headers keep their native multi-value shape; the engine normalizes them.
type Request struct {
	Headers http.Header
	RawBody []byte
	// Secret overrides every other secret source when set.
	Secret string
	// MaxBodyBytes overrides the engine limit when positive.
	MaxBodyBytes int64
}

// ResultBody is the JSON body written back to the sender.
type ResultBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of one Process call.
type Result struct {
	Status    int         `json:"status"`
	EventType string      `json:"event_type,omitempty"`
	Body      *ResultBody `json:"body,omitempty"`
	// Err holds the classified failure, if any. Never serialized.
	Err error `json:"-"`
}

// Success reports whether every handler ran to completion.
func (r Result) Success() bool {
	return r.Status == http.StatusOK
}

// HandlerContext is built once per request after verification and
// validation succeed. Handlers must treat it as read-only.
type HandlerContext struct {
	EventType  string
	Provider   string
	DeliveryID string
	Headers    map[string]string
	RawBody    []byte
	ReceivedAt time.Time
}

// Header returns the normalized value for a header name in any case.
func (hc *HandlerContext) Header(name string) string {
	if hc == nil {
		return ""
	}
	return hc.Headers[strings.ToLower(name)]
}

// NormalizeHeaders lower-cases header names and keeps the first value of
// multi-valued headers.
func NormalizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || len(values) == 0 {
			continue
		}
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = values[0]
	}
	return out
}
