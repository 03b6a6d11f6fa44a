package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const defaultSinkBuffer = 1024

// Publisher ships serialized observation events to a broker.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

// Sink forwards completed and failure events to a Publisher from a
// background loop. When the buffer is full, events are dropped and counted.
type Sink struct {
	publisher Publisher
	events    chan Event
	logger    *slog.Logger
	timeout   time.Duration
	dropped   atomic.Int64
	published atomic.Int64
}

func NewSink(publisher Publisher, buffer int, logger *slog.Logger) *Sink {
	if buffer <= 0 {
		buffer = defaultSinkBuffer
	}
	return &Sink{
		publisher: publisher,
		events:    make(chan Event, buffer),
		logger:    logger,
		timeout:   5 * time.Second,
	}
}

// Observer subscribes the sink to the outcome-bearing event kinds.
func (s *Sink) Observer() Observer {
	return Observer{
		Name:                     "sink",
		OnVerificationFailed:     s.enqueue,
		OnSchemaValidationFailed: s.enqueue,
		OnHandlerFailed:          s.enqueue,
		OnCompleted:              s.enqueue,
	}
}

func (s *Sink) enqueue(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Run publishes buffered events until ctx is cancelled, then drains what
// is left and closes the publisher.
func (s *Sink) Run(ctx context.Context) error {
	s.logger.Info("event sink started")
	for {
		select {
		case ev := <-s.events:
			s.publish(ctx, ev)
		case <-ctx.Done():
			s.drain()
			s.logger.Info("event sink stopped",
				"published", s.published.Load(),
				"dropped", s.dropped.Load(),
			)
			return s.publisher.Close()
		}
	}
}

func (s *Sink) drain() {
	for {
		select {
		case ev := <-s.events:
			s.publish(context.Background(), ev)
		default:
			return
		}
	}
}

func (s *Sink) publish(ctx context.Context, ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encoding observation event", "kind", string(ev.Kind), "error", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, eventKey(ev), value); err != nil {
		s.logger.Error("publishing observation event",
			"kind", string(ev.Kind),
			"provider", ev.Provider,
			"error", err,
		)
		return
	}
	s.published.Add(1)
}

// Dropped reports events discarded because the buffer was full.
func (s *Sink) Dropped() int64 { return s.dropped.Load() }

// Published reports events handed to the publisher successfully.
func (s *Sink) Published() int64 { return s.published.Load() }

func eventKey(ev Event) string {
	if ev.DeliveryID != "" {
		return fmt.Sprintf("%s:%s", ev.Provider, ev.DeliveryID)
	}
	return fmt.Sprintf("%s:%s", ev.Provider, ev.RequestID)
}
