package observe

import (
	"fmt"
	"log/slog"
)

// Observer is a set of optional callbacks, one slot per event kind. Nil
// slots are skipped. OnEvent, when set, receives every event after the
// kind-specific slot.
type Observer struct {
	Name string

	OnRequestReceived           func(Event)
	OnBodyTooLarge              func(Event)
	OnJSONParseFailed           func(Event)
	OnEventUnhandled            func(Event)
	OnVerificationSucceeded     func(Event)
	OnVerificationFailed        func(Event)
	OnSchemaValidationSucceeded func(Event)
	OnSchemaValidationFailed    func(Event)
	OnHandlerStarted            func(Event)
	OnHandlerSucceeded          func(Event)
	OnHandlerFailed             func(Event)
	OnCompleted                 func(Event)

	OnEvent func(Event)
}

func (o Observer) slot(kind Kind) func(Event) {
	switch kind {
	case KindRequestReceived:
		return o.OnRequestReceived
	case KindBodyTooLarge:
		return o.OnBodyTooLarge
	case KindJSONParseFailed:
		return o.OnJSONParseFailed
	case KindEventUnhandled:
		return o.OnEventUnhandled
	case KindVerificationSucceeded:
		return o.OnVerificationSucceeded
	case KindVerificationFailed:
		return o.OnVerificationFailed
	case KindSchemaValidationSucceeded:
		return o.OnSchemaValidationSucceeded
	case KindSchemaValidationFailed:
		return o.OnSchemaValidationFailed
	case KindHandlerStarted:
		return o.OnHandlerStarted
	case KindHandlerSucceeded:
		return o.OnHandlerSucceeded
	case KindHandlerFailed:
		return o.OnHandlerFailed
	case KindCompleted:
		return o.OnCompleted
	}
	return nil
}

// Emitter delivers events to observers in registration order. A panicking
// callback is recovered and logged; the remaining callbacks still run.
type Emitter struct {
	observers []Observer
	logger    *slog.Logger
}

func NewEmitter(logger *slog.Logger, observers ...Observer) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		observers: append([]Observer(nil), observers...),
		logger:    logger,
	}
}

// Len reports the number of registered observers.
func (e *Emitter) Len() int {
	if e == nil {
		return 0
	}
	return len(e.observers)
}

func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	for _, o := range e.observers {
		e.call(o.Name, ev, o.slot(ev.Kind))
		e.call(o.Name, ev, o.OnEvent)
	}
}

func (e *Emitter) call(name string, ev Event, fn func(Event)) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("observer panicked",
				"observer", name,
				"kind", string(ev.Kind),
				"provider", ev.Provider,
				"error", fmt.Sprint(r),
			)
		}
	}()
	fn(ev)
}
