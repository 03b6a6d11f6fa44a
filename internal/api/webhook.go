package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/webhook-ingest/internal/domain"
	"github.com/Priya8975/webhook-ingest/internal/engine"
)

// ReadRequest captures the raw body before any decoding so signatures are
// checked against the exact bytes sent. At most maxBytes+1 bytes are read:
// enough for the engine to see the limit was exceeded without buffering an
// arbitrarily large body.
func ReadRequest(r *http.Request, maxBytes int64) (domain.Request, error) {
	reader := io.Reader(r.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(r.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return domain.Request{}, fmt.Errorf("reading request body: %w", err)
	}
	return domain.Request{
		Headers:      r.Header,
		RawBody:      body,
		MaxBodyBytes: maxBytes,
	}, nil
}

// WriteResult maps a Result onto the response.
func WriteResult(w http.ResponseWriter, res domain.Result) {
	if res.Body == nil {
		w.WriteHeader(res.Status)
		return
	}
	respondJSON(w, res.Status, res.Body)
}

// Registry routes inbound webhooks to the engine for their provider.
type Registry struct {
	engines map[string]*engine.Engine
}

func NewRegistry(engines ...*engine.Engine) *Registry {
	reg := &Registry{engines: make(map[string]*engine.Engine, len(engines))}
	for _, e := range engines {
		reg.engines[e.Provider().Name()] = e
	}
	return reg
}

func (reg *Registry) Lookup(name string) (*engine.Engine, bool) {
	e, ok := reg.engines[name]
	return e, ok
}

// Providers lists registered provider names in sorted order.
func (reg *Registry) Providers() []string {
	names := make([]string, 0, len(reg.engines))
	for name := range reg.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type WebhookHandler struct {
	registry     *Registry
	maxBodyBytes int64
	logger       *slog.Logger
}

func NewWebhookHandler(reg *Registry, maxBodyBytes int64, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{registry: reg, maxBodyBytes: maxBodyBytes, logger: logger}
}

// Receive handles POST /webhooks/{provider}.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	eng, ok := h.registry.Lookup(name)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown provider")
		return
	}

	req, err := ReadRequest(r, h.maxBodyBytes)
	if err != nil {
		h.logger.Warn("failed to read webhook body", "provider", name, "error", err)
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	res := eng.Process(r.Context(), req)
	if res.Err != nil && res.Status >= http.StatusInternalServerError {
		h.logger.Error("webhook processing failed",
			"provider", name,
			"event_type", res.EventType,
			"status", res.Status,
			"error", res.Err,
		)
	}
	WriteResult(w, res)
}
