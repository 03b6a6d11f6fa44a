package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/webhook-ingest/internal/api"
	"github.com/Priya8975/webhook-ingest/internal/config"
	"github.com/Priya8975/webhook-ingest/internal/engine"
	"github.com/Priya8975/webhook-ingest/internal/handlers"
	"github.com/Priya8975/webhook-ingest/internal/observe"
	"github.com/Priya8975/webhook-ingest/internal/store"
	"github.com/Priya8975/webhook-ingest/internal/telemetry"
	ws "github.com/Priya8975/webhook-ingest/internal/websocket"
)

const purgeInterval = 10 * time.Minute

// purger is implemented by SQL replay stores, which do not expire rows on
// their own.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	replay, closeReplay, err := openReplayStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeReplay()

	var (
		breaker *store.Breaker
		guarded store.ReplayStore
	)
	if replay != nil {
		breaker = store.NewBreaker(replay, logger).WithThreshold(cfg.BreakerThreshold, 0)
		guarded = breaker
		if p, ok := replay.(purger); ok {
			go purgeLoop(ctx, p, logger)
		}
	}

	tp, shutdownTracing, err := telemetry.Setup(ctx, "webhookd", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	aggregator := observe.NewAggregator()
	hub := ws.NewHub(logger)
	go hub.Run()

	observers := []observe.Observer{aggregator.Observer(), observe.LogObserver(logger), hub.Observer()}
	if cfg.OTLPEndpoint != "" {
		observers = append(observers, observe.NewTraceObserver(tp).Observer())
	}

	sink, err := openSink(cfg, logger)
	if err != nil {
		return err
	}
	sinkCtx, stopSink := context.WithCancel(context.Background())
	sinkDone := make(chan struct{})
	if sink != nil {
		observers = append(observers, sink.Observer())
		go func() {
			defer close(sinkDone)
			if err := sink.Run(sinkCtx); err != nil {
				logger.Error("event sink close failed", "error", err)
			}
		}()
	} else {
		close(sinkDone)
	}
	defer func() {
		stopSink()
		<-sinkDone
	}()

	engines := buildEngines(cfg, guarded, observers, logger)

	var limiter *api.RateLimiter
	if cfg.RateLimitPerSecond > 0 {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		limiter = api.NewRateLimiter(client, logger)
	}

	registry := api.NewRegistry(engines...)
	router := api.NewRouter(api.Deps{
		Registry:      registry,
		Aggregator:    aggregator,
		Hub:           hub,
		Sink:          sink,
		Breaker:       breaker,
		RateLimiter:   limiter,
		RateLimit:     cfg.RateLimitPerSecond,
		ReplayBackend: cfg.ReplayBackend,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HandlerTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", cfg.Port,
			"providers", registry.Providers(),
			"replay_backend", cfg.ReplayBackend,
			"event_sink", cfg.EventSink,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// buildEngines finishes the bundled builders with the shared replay store,
// observers and limits. A nil store disables replay protection.
func buildEngines(cfg *config.Config, replay store.ReplayStore, observers []observe.Observer, logger *slog.Logger) []*engine.Engine {
	var engines []*engine.Engine
	for _, b := range handlers.Builders(handlers.Secrets{}, logger) {
		b = b.Observe(observers...).
			MaxBodyBytes(cfg.MaxBodyBytes).
			HandlerTimeout(cfg.HandlerTimeout).
			WithLogger(logger)
		if replay != nil {
			b = b.WithReplayProtection(engine.ReplayProtection{Store: replay})
		}
		engines = append(engines, b.Build())
	}
	return engines
}

// openReplayStore returns nil for the "none" backend.
func openReplayStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.ReplayStore, func(), error) {
	opts := store.ReplayOptions{Lease: cfg.ReplayLease, Retention: cfg.ReplayRetention}
	noop := func() {}

	switch cfg.ReplayBackend {
	case config.BackendNone:
		logger.Warn("replay protection disabled")
		return nil, noop, nil
	case config.BackendMemory:
		return store.NewMemory(opts), noop, nil
	case config.BackendRedis:
		s, err := store.NewRedis(ctx, cfg.RedisURL, opts)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to redis: %w", err)
		}
		logger.Info("connected to Redis")
		return s, func() { s.Close() }, nil
	case config.BackendPostgres:
		s, err := store.NewPostgres(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL")
		if err := s.RunMigrations(ctx); err != nil {
			s.Close()
			return nil, noop, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("database migrations applied")
		return s, s.Close, nil
	case config.BackendSQLite:
		s, err := store.OpenSQLite(cfg.SQLitePath, opts)
		if err != nil {
			return nil, noop, fmt.Errorf("opening sqlite: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown replay backend %q", cfg.ReplayBackend)
	}
}

// openSink returns nil when no event sink is configured.
func openSink(cfg *config.Config, logger *slog.Logger) (*observe.Sink, error) {
	switch cfg.EventSink {
	case config.SinkKafka:
		logger.Info("publishing events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return observe.NewSink(observe.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), 0, logger), nil
	case config.SinkAMQP:
		pub, err := observe.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("connecting to amqp: %w", err)
		}
		logger.Info("publishing events to amqp", "queue", cfg.AMQPQueue)
		return observe.NewSink(pub, 0, logger), nil
	default:
		return nil, nil
	}
}

func purgeLoop(ctx context.Context, p purger, logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purging expired replay keys failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired replay keys", "count", n)
			}
		}
	}
}
