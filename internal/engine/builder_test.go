package engine

import (
	"context"
	"net/http"
	"testing"

	"github.com/Priya8975/webhook-ingest/internal/domain"
	"github.com/Priya8975/webhook-ingest/internal/observe"
	"github.com/Priya8975/webhook-ingest/internal/provider"
)

func noop(context.Context, any, *domain.HandlerContext) error { return nil }

func TestBuilder_MethodsReturnIndependentValues(t *testing.T) {
	base := New(provider.NewGitHub("s", nil)).Event("push", noop)

	withIssues := base.Event("issues", noop)
	withMorePush := base.Event("push", noop)

	if got := base.Build().EventTypes(); len(got) != 1 || got[0] != "push" {
		t.Errorf("base event types = %v", got)
	}
	if got := withIssues.Build().EventTypes(); len(got) != 2 {
		t.Errorf("derived event types = %v", got)
	}
	if n := len(base.Build().handlers["push"]); n != 1 {
		t.Errorf("base push handlers = %d, want 1", n)
	}
	if n := len(withMorePush.Build().handlers["push"]); n != 2 {
		t.Errorf("derived push handlers = %d, want 2", n)
	}
	if !withIssues.Build().Handles("push") || base.Build().Handles("issues") {
		t.Error("handler registration leaked between builders")
	}
}

func TestBuilder_SiblingObserversDoNotAlias(t *testing.T) {
	var a, b int
	base := New(provider.NewGitHub("s", nil)).
		Observe(observe.Observer{}).
		Observe(observe.Observer{})

	left := base.Observe(observe.Observer{OnCompleted: func(observe.Event) { a++ }})
	right := base.Observe(observe.Observer{OnCompleted: func(observe.Event) { b++ }})

	left.Build().Process(context.Background(), domain.Request{RawBody: []byte(`{}`)})
	if a != 1 || b != 0 {
		t.Errorf("a=%d b=%d; sibling builders share observers", a, b)
	}
	right.Build().Process(context.Background(), domain.Request{RawBody: []byte(`{}`)})
	if a != 1 || b != 1 {
		t.Errorf("a=%d b=%d", a, b)
	}
}

func TestBuilder_SettingsDoNotLeak(t *testing.T) {
	base := New(provider.NewGitHub("s", nil)).Event("push", noop)
	limited := base.MaxBodyBytes(2)

	req := domain.Request{Headers: http.Header{"X-Github-Event": {"ping"}}, RawBody: []byte(`{"a":1}`)}
	if res := limited.Build().Process(context.Background(), req); res.Status != http.StatusRequestEntityTooLarge {
		t.Errorf("limited status = %d, want 413", res.Status)
	}
	if res := base.Build().Process(context.Background(), req); res.Status != http.StatusNoContent {
		t.Errorf("base status = %d, want 204", res.Status)
	}
}

func TestBuilder_BuildSnapshotsHandlers(t *testing.T) {
	b := New(provider.NewGitHub("s", nil)).Event("push", noop)
	eng := b.Build()
	b = b.Event("push", noop)
	if n := len(eng.handlers["push"]); n != 1 {
		t.Errorf("built engine changed after builder use: %d handlers", n)
	}
}

func TestBuilder_NilHandlersIgnored(t *testing.T) {
	eng := New(provider.NewGitHub("s", nil)).Event("push", nil).Build()
	if eng.Handles("push") {
		t.Error("nil handler should not register the event type")
	}
}

func TestOn_ConvertsUntypedPayload(t *testing.T) {
	var got pushEvent
	h := On(func(_ context.Context, p pushEvent, _ *domain.HandlerContext) error {
		got = p
		return nil
	})
	if err := h(context.Background(), map[string]any{"ref": "main"}, nil); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got.Ref != "main" {
		t.Errorf("ref = %q", got.Ref)
	}
	if err := h(context.Background(), "not an object", nil); err == nil {
		t.Error("expected conversion error")
	}
}

func TestAs_PointerPayload(t *testing.T) {
	got, err := As[pushEvent](&pushEvent{Ref: "x"})
	if err != nil || got.Ref != "x" {
		t.Errorf("got %+v err=%v", got, err)
	}
}
