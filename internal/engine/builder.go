package engine

import (
	"log/slog"
	"os"
	"time"

	"github.com/Priya8975/webhook-ingest/internal/observe"
	"github.com/Priya8975/webhook-ingest/internal/provider"
	"github.com/Priya8975/webhook-ingest/internal/store"
)

// ReplayProtection enables duplicate-delivery suppression backed by Store.
type ReplayProtection struct {
	Store store.ReplayStore
}

// Builder configures an Engine. Every method returns a new Builder and
// leaves the receiver untouched, so partially configured builders can be
// shared and extended independently.
type Builder struct {
	provider             provider.Provider
	handlers             map[string][]Handler
	order                []string
	onError              ErrorHook
	onVerificationFailed VerificationFailedHook
	observers            []observe.Observer
	replay               store.ReplayStore
	maxBodyBytes         int64
	handlerTimeout       time.Duration
	logger               *slog.Logger
	now                  func() time.Time
	lookupEnv            func(string) (string, bool)
}

func New(p provider.Provider) Builder {
	return Builder{
		provider:  p,
		handlers:  map[string][]Handler{},
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		lookupEnv: os.LookupEnv,
	}
}

// Event appends handlers for eventType. Handlers run in the order they
// were registered.
func (b Builder) Event(eventType string, handlers ...Handler) Builder {
	next := make(map[string][]Handler, len(b.handlers)+1)
	for k, v := range b.handlers {
		next[k] = v
	}
	existing := next[eventType]
	chain := make([]Handler, 0, len(existing)+len(handlers))
	chain = append(chain, existing...)
	for _, h := range handlers {
		if h != nil {
			chain = append(chain, h)
		}
	}
	if _, seen := b.handlers[eventType]; !seen {
		b.order = append(b.order[:len(b.order):len(b.order)], eventType)
	}
	next[eventType] = chain
	b.handlers = next
	return b
}

func (b Builder) OnError(h ErrorHook) Builder {
	b.onError = h
	return b
}

func (b Builder) OnVerificationFailed(h VerificationFailedHook) Builder {
	b.onVerificationFailed = h
	return b
}

// Observe appends observers; they are notified in registration order.
func (b Builder) Observe(observers ...observe.Observer) Builder {
	b.observers = append(b.observers[:len(b.observers):len(b.observers)], observers...)
	return b
}

func (b Builder) WithReplayProtection(opts ReplayProtection) Builder {
	b.replay = opts.Store
	return b
}

// MaxBodyBytes rejects larger bodies with 413. Zero disables the limit.
func (b Builder) MaxBodyBytes(n int64) Builder {
	b.maxBodyBytes = n
	return b
}

// HandlerTimeout bounds each handler call. Zero waits indefinitely.
func (b Builder) HandlerTimeout(d time.Duration) Builder {
	b.handlerTimeout = d
	return b
}

func (b Builder) WithLogger(logger *slog.Logger) Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

func (b Builder) WithClock(now func() time.Time) Builder {
	if now != nil {
		b.now = now
	}
	return b
}

// WithSecretLookup replaces the environment lookup used for fallback
// secrets.
func (b Builder) WithSecretLookup(lookup func(string) (string, bool)) Builder {
	if lookup != nil {
		b.lookupEnv = lookup
	}
	return b
}

// Build freezes the configuration into an Engine safe for concurrent use.
func (b Builder) Build() *Engine {
	handlers := make(map[string][]Handler, len(b.handlers))
	for k, v := range b.handlers {
		if len(v) > 0 {
			handlers[k] = append([]Handler(nil), v...)
		}
	}
	return &Engine{
		provider:             b.provider,
		handlers:             handlers,
		eventTypes:           append([]string(nil), b.order...),
		onError:              b.onError,
		onVerificationFailed: b.onVerificationFailed,
		emitter:              observe.NewEmitter(b.logger, b.observers...),
		replay:               b.replay,
		maxBodyBytes:         b.maxBodyBytes,
		handlerTimeout:       b.handlerTimeout,
		logger:               b.logger.With("provider", b.provider.Name()),
		now:                  b.now,
		lookupEnv:            b.lookupEnv,
	}
}
