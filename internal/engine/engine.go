// Package engine turns raw webhook deliveries into handler calls: size
// guard, decode, classify, verify, replay check, unwrap, validate and
// dispatch, with exactly one result and one completed observation per
// request.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Priya8975/webhook-ingest/internal/domain"
	"github.com/Priya8975/webhook-ingest/internal/observe"
	"github.com/Priya8975/webhook-ingest/internal/provider"
	"github.com/Priya8975/webhook-ingest/internal/store"
	"github.com/google/uuid"
)

// Engine processes deliveries for one provider. It holds no mutable state
// across calls; the replay store is the only shared resource.
type Engine struct {
	provider             provider.Provider
	handlers             map[string][]Handler
	eventTypes           []string
	onError              ErrorHook
	onVerificationFailed VerificationFailedHook
	emitter              *observe.Emitter
	replay               store.ReplayStore
	maxBodyBytes         int64
	handlerTimeout       time.Duration
	logger               *slog.Logger
	now                  func() time.Time
	lookupEnv            func(string) (string, bool)
}

func (e *Engine) Provider() provider.Provider { return e.provider }

// Handles reports whether any handler is registered for eventType.
func (e *Engine) Handles(eventType string) bool {
	return len(e.handlers[eventType]) > 0
}

// EventTypes lists registered event types in registration order.
func (e *Engine) EventTypes() []string {
	return append([]string(nil), e.eventTypes...)
}

// Process runs one delivery through the pipeline. It never panics and
// always returns a Result.
func (e *Engine) Process(ctx context.Context, req domain.Request) domain.Result {
	r := &run{
		engine:     e,
		ctx:        ctx,
		req:        req,
		requestID:  uuid.NewString(),
		start:      e.now(),
		receivedAt: e.now(),
	}
	r.execute()
	r.emitCompleted()
	return r.result
}

type stage int

const (
	stageNormalize stage = iota
	stageBodyGuard
	stageDecode
	stageClassify
	stageResolveSecret
	stageVerify
	stageReplay
	stageUnwrap
	stageValidate
	stageDispatch
	stageCommit
	stageComplete
	stageDone
)

var stageNames = [...]string{
	stageNormalize:     "normalize",
	stageBodyGuard:     "body_guard",
	stageDecode:        "decode",
	stageClassify:      "classify",
	stageResolveSecret: "resolve_secret",
	stageVerify:        "verify",
	stageReplay:        "replay",
	stageUnwrap:        "unwrap",
	stageValidate:      "validate",
	stageDispatch:      "dispatch",
	stageCommit:        "commit",
	stageComplete:      "complete",
	stageDone:          "done",
}

func (s stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// transitions maps each non-terminal stage to its step. A step either
// returns the next stage or calls finish and returns stageDone.
var transitions = [...]func(*run) stage{
	stageNormalize:     (*run).normalize,
	stageBodyGuard:     (*run).guardBody,
	stageDecode:        (*run).decode,
	stageClassify:      (*run).classify,
	stageResolveSecret: (*run).resolveSecret,
	stageVerify:        (*run).verify,
	stageReplay:        (*run).reserve,
	stageUnwrap:        (*run).unwrap,
	stageValidate:      (*run).validate,
	stageDispatch:      (*run).dispatch,
	stageCommit:        (*run).commit,
	stageComplete:      (*run).complete,
}

// run is the per-request state threaded through the stages.
type run struct {
	engine     *Engine
	ctx        context.Context
	req        domain.Request
	requestID  string
	start      time.Time
	receivedAt time.Time

	current    stage
	headers    map[string]string
	body       provider.Body
	eventType  string
	deliveryID string
	handlers   []Handler
	secret     string
	unverified bool
	replayKey  string
	reserved   bool
	payload    any
	validated  any

	result domain.Result
}

func (r *run) execute() {
	defer func() {
		if rec := recover(); rec != nil {
			r.engine.logger.Error("webhook pipeline panicked",
				"stage", r.current.String(),
				"event_type", r.eventType,
				"error", fmt.Sprint(rec),
			)
			r.release()
			r.finish(http.StatusInternalServerError, msgInternal, errInternal(fmt.Errorf("panic in %s: %v", r.current, rec)))
		}
	}()
	for r.current = stageNormalize; r.current != stageDone; {
		next := transitions[r.current](r)
		r.engine.logger.Debug("webhook stage", "stage", r.current.String(), "next", next.String())
		r.current = next
	}
}

func (r *run) normalize() stage {
	r.headers = domain.NormalizeHeaders(r.req.Headers)
	r.emit(observe.KindRequestReceived)
	return stageBodyGuard
}

func (r *run) guardBody() stage {
	limit := r.engine.maxBodyBytes
	if r.req.MaxBodyBytes > 0 {
		limit = r.req.MaxBodyBytes
	}
	if limit > 0 && int64(len(r.req.RawBody)) > limit {
		err := errPayloadTooLarge(len(r.req.RawBody), limit)
		ev := r.event(observe.KindBodyTooLarge).WithErr(err)
		ev.MaxBodyBytes = limit
		r.engine.emitter.Emit(ev)
		return r.finish(http.StatusRequestEntityTooLarge, msgPayloadTooLarge, err)
	}
	return stageDecode
}

func (r *run) decode() stage {
	var value any
	if err := json.Unmarshal(r.req.RawBody, &value); err != nil {
		err = errInvalidJSON(err)
		r.engine.emitter.Emit(r.event(observe.KindJSONParseFailed).WithErr(err))
		return r.finish(http.StatusBadRequest, msgInvalidJSON, err)
	}
	r.body = provider.Body{Raw: r.req.RawBody, Value: value}
	return stageClassify
}

// classify runs before verification: unregistered event types are
// answered with 204 without ever checking the signature.
func (r *run) classify() stage {
	p := r.engine.provider
	r.eventType = p.EventType(r.headers, r.body)
	r.deliveryID = p.DeliveryID(r.headers)
	r.result.EventType = r.eventType
	r.handlers = r.engine.handlers[r.eventType]
	if r.eventType == "" || len(r.handlers) == 0 {
		r.emit(observe.KindEventUnhandled)
		r.result.Status = http.StatusNoContent
		r.result.Err = errUnhandledEvent(r.eventType)
		return stageDone
	}
	return stageResolveSecret
}

func (r *run) resolveSecret() stage {
	secret, source := r.engine.resolveSecret(r.req.Secret)
	if secret == "" {
		if provider.SecretRequired(r.engine.provider) {
			return r.rejectSignature("no signing secret configured")
		}
		r.unverified = true
		r.engine.logger.Debug("no secret configured, skipping verification", "event_type", r.eventType)
		return stageReplay
	}
	r.secret = secret
	r.engine.logger.Debug("resolved signing secret", "source", source)
	return stageVerify
}

func (r *run) verify() stage {
	if !r.engine.provider.Verify(r.req.RawBody, r.headers, r.secret) {
		return r.rejectSignature("signature missing or invalid")
	}
	r.emit(observe.KindVerificationSucceeded)
	return stageReplay
}

func (r *run) rejectSignature(reason string) stage {
	err := errSignatureInvalid(reason)
	r.engine.emitter.Emit(r.event(observe.KindVerificationFailed).WithErr(err))
	if hook := r.engine.onVerificationFailed; hook != nil {
		r.safeHook("verification_failed", func() {
			hook(r.ctx, VerificationFailure{
				Err:        err,
				Provider:   r.engine.provider.Name(),
				EventType:  r.eventType,
				DeliveryID: r.deliveryID,
				Headers:    r.headers,
				Reason:     reason,
			})
		})
	}
	return r.finish(http.StatusUnauthorized, msgSignatureFailed, err)
}

func (r *run) reserve() stage {
	replay := r.engine.replay
	if replay == nil {
		return stageUnwrap
	}
	id := provider.ReplayKey(r.engine.provider, r.headers, r.body, r.deliveryID)
	if id == "" {
		r.engine.logger.Warn("replay protection enabled but delivery has no id or nonce",
			"event_type", r.eventType,
		)
		return stageUnwrap
	}
	key := store.ReplayKey(r.engine.provider.Name(), id)
	ok, err := replay.Reserve(r.ctx, key, r.requestID)
	if err != nil {
		err = errReplayStore(err, key)
		r.engine.logger.Warn("replay reserve failed", "replay_key", key, "error", err)
		return r.finish(http.StatusInternalServerError, msgReplayUnavailable, err)
	}
	if !ok {
		return r.finish(http.StatusConflict, msgDuplicateDelivery, errDuplicateDelivery(key))
	}
	r.replayKey = key
	r.reserved = true
	return stageUnwrap
}

func (r *run) unwrap() stage {
	r.payload = provider.Payload(r.engine.provider, r.body)
	return stageValidate
}

func (r *run) validate() stage {
	sc, ok := r.engine.provider.Schema(r.eventType)
	if !ok {
		r.validated = r.payload
		r.emit(observe.KindSchemaValidationSucceeded)
		return stageDispatch
	}
	validated, err := validateSafely(sc.Validate, r.payload)
	if err != nil {
		err = errSchemaInvalid(err, r.eventType)
		r.engine.emitter.Emit(r.event(observe.KindSchemaValidationFailed).WithErr(err))
		r.reportError(ErrorInfo{
			Err:          err,
			Provider:     r.engine.provider.Name(),
			EventType:    r.eventType,
			DeliveryID:   r.deliveryID,
			Payload:      r.payload,
			HandlerIndex: -1,
		})
		r.release()
		return r.finish(http.StatusBadRequest, msgSchemaFailed, err)
	}
	r.validated = validated
	r.emit(observe.KindSchemaValidationSucceeded)
	return stageDispatch
}

func (r *run) dispatch() stage {
	hc := &domain.HandlerContext{
		EventType:  r.eventType,
		Provider:   r.engine.provider.Name(),
		DeliveryID: r.deliveryID,
		Headers:    r.headers,
		RawBody:    r.req.RawBody,
		ReceivedAt: r.receivedAt,
	}
	for i, h := range r.handlers {
		started := r.event(observe.KindHandlerStarted)
		started.HandlerIndex = i
		r.engine.emitter.Emit(started)

		began := r.engine.now()
		err := r.engine.invoke(r.ctx, h, r.validated, hc)
		elapsed := r.engine.now().Sub(began)

		if err != nil {
			err = errHandlerFailed(err, r.eventType, i)
			failed := r.event(observe.KindHandlerFailed).WithErr(err)
			failed.HandlerIndex = i
			failed.HandlerTime = elapsed
			r.engine.emitter.Emit(failed)
			r.reportError(ErrorInfo{
				Err:          err,
				Provider:     hc.Provider,
				EventType:    r.eventType,
				DeliveryID:   r.deliveryID,
				Payload:      r.payload,
				HandlerIndex: i,
				Context:      hc,
			})
			r.release()
			return r.finish(http.StatusInternalServerError, msgHandlerFailed, err)
		}

		succeeded := r.event(observe.KindHandlerSucceeded)
		succeeded.HandlerIndex = i
		succeeded.HandlerTime = elapsed
		r.engine.emitter.Emit(succeeded)
	}
	return stageCommit
}

func (r *run) commit() stage {
	if !r.reserved {
		return stageComplete
	}
	// Handlers already ran, so the commit must outlive a sender that has
	// hung up.
	ctx := context.WithoutCancel(r.ctx)
	if err := r.engine.replay.Commit(ctx, r.replayKey, r.requestID); err != nil {
		if errors.Is(err, store.ErrReservationLost) {
			r.engine.logger.Warn("replay lease expired before commit; key taken by another delivery",
				"replay_key", r.replayKey,
				"request_id", r.requestID,
			)
		} else {
			// The pending reservation still blocks redelivery until its
			// lease runs out.
			r.engine.logger.Warn("replay commit failed",
				"replay_key", r.replayKey,
				"error", errReplayStore(err, r.replayKey),
			)
		}
	}
	r.reserved = false
	return stageComplete
}

func (r *run) complete() stage {
	r.result.Status = http.StatusOK
	r.result.Body = &domain.ResultBody{OK: true}
	return stageDone
}

// finish records a terminal failure and ends the run.
func (r *run) finish(status int, message string, err error) stage {
	r.result.Status = status
	r.result.Body = &domain.ResultBody{OK: false, Error: message}
	r.result.Err = err
	return stageDone
}

func (r *run) release() {
	if !r.reserved {
		return
	}
	r.reserved = false
	if err := r.engine.replay.Release(context.WithoutCancel(r.ctx), r.replayKey, r.requestID); err != nil {
		r.engine.logger.Warn("replay release failed", "replay_key", r.replayKey, "error", err)
	}
}

func (r *run) reportError(info ErrorInfo) {
	hook := r.engine.onError
	if hook == nil {
		return
	}
	r.safeHook("error", func() { hook(r.ctx, info) })
}

func (r *run) safeHook(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.engine.logger.Warn("webhook hook panicked",
				"hook", name,
				"event_type", r.eventType,
				"error", fmt.Sprint(rec),
			)
		}
	}()
	fn()
}

func (r *run) event(kind observe.Kind) observe.Event {
	return observe.Event{
		Kind:         kind,
		RequestID:    r.requestID,
		Provider:     r.engine.provider.Name(),
		EventType:    r.eventType,
		DeliveryID:   r.deliveryID,
		RawBodyBytes: len(r.req.RawBody),
		StartTime:    r.start,
		ReceivedAt:   r.receivedAt,
	}
}

func (r *run) emit(kind observe.Kind) {
	r.engine.emitter.Emit(r.event(kind))
}

func (r *run) emitCompleted() {
	ev := r.event(observe.KindCompleted)
	ev.Status = r.result.Status
	ev.Duration = r.engine.now().Sub(r.start)
	ev.Success = r.result.Success()
	if r.result.Err != nil && r.result.Status != http.StatusNoContent {
		ev = ev.WithErr(r.result.Err)
	}
	r.engine.emitter.Emit(ev)
}

// invoke calls h, converting panics to errors and enforcing the handler
// timeout when one is configured.
func (e *Engine) invoke(ctx context.Context, h Handler, payload any, hc *domain.HandlerContext) error {
	if e.handlerTimeout <= 0 {
		return callHandler(ctx, h, payload, hc)
	}
	ctx, cancel := context.WithTimeout(ctx, e.handlerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- callHandler(ctx, h, payload, hc)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("handler did not finish within %s: %w", e.handlerTimeout, ctx.Err())
	}
}

func callHandler(ctx context.Context, h Handler, payload any, hc *domain.HandlerContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	if err := h(ctx, payload, hc); err != nil {
		return err
	}
	return nil
}

func validateSafely(validate func(any) (any, error), value any) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, errors.New(fmt.Sprint("schema panicked: ", rec))
		}
	}()
	return validate(value)
}
