package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceObserver records one span per request, opened on request_received
// and ended on completed. Intermediate stages become span events.
type TraceObserver struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

func NewTraceObserver(tp trace.TracerProvider) *TraceObserver {
	return &TraceObserver{
		tracer: tp.Tracer("github.com/Priya8975/webhook-ingest/internal/observe"),
		spans:  map[string]trace.Span{},
	}
}

func (t *TraceObserver) Observer() Observer {
	return Observer{Name: "trace", OnEvent: t.handle}
}

func (t *TraceObserver) handle(ev Event) {
	switch ev.Kind {
	case KindRequestReceived:
		_, span := t.tracer.Start(context.Background(), "webhook.process",
			trace.WithTimestamp(ev.StartTime),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("webhook.provider", ev.Provider),
				attribute.Int("webhook.body_bytes", ev.RawBodyBytes),
			),
		)
		t.mu.Lock()
		t.spans[ev.RequestID] = span
		t.mu.Unlock()
	case KindCompleted:
		t.mu.Lock()
		span, ok := t.spans[ev.RequestID]
		delete(t.spans, ev.RequestID)
		t.mu.Unlock()
		if !ok {
			return
		}
		span.SetAttributes(
			attribute.String("webhook.event_type", ev.EventType),
			attribute.String("webhook.delivery_id", ev.DeliveryID),
			attribute.Int("http.response.status_code", ev.Status),
		)
		if ev.Success {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, ev.Error)
		}
		span.End(trace.WithTimestamp(ev.StartTime.Add(ev.Duration)))
	default:
		t.mu.Lock()
		span, ok := t.spans[ev.RequestID]
		t.mu.Unlock()
		if !ok {
			return
		}
		attrs := []attribute.KeyValue{attribute.String("webhook.event_type", ev.EventType)}
		if ev.Kind == KindHandlerStarted || ev.Kind == KindHandlerSucceeded || ev.Kind == KindHandlerFailed {
			attrs = append(attrs, attribute.Int("webhook.handler_index", ev.HandlerIndex))
		}
		span.AddEvent(string(ev.Kind), trace.WithAttributes(attrs...))
		if ev.Err != nil {
			span.RecordError(ev.Err)
		}
	}
}

// Open reports spans started but not yet completed.
func (t *TraceObserver) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}
