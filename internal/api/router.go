package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Priya8975/webhook-ingest/internal/observe"
	"github.com/Priya8975/webhook-ingest/internal/store"
	ws "github.com/Priya8975/webhook-ingest/internal/websocket"
)

// Deps are the collaborators the HTTP surface is built from. Only Registry
// and Aggregator are required.
type Deps struct {
	Registry      *Registry
	Aggregator    *observe.Aggregator
	Hub           *ws.Hub
	Sink          *observe.Sink
	Breaker       *store.Breaker
	RateLimiter   *RateLimiter
	RateLimit     int
	ReplayBackend string
	MaxBodyBytes  int64
	Logger        *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for dashboard
	r.Use(corsMiddleware)

	webhookHandler := NewWebhookHandler(d.Registry, d.MaxBodyBytes, logger)
	dashHandler := NewDashboardHandler(d.Aggregator, d.Hub, d.Sink)

	// Inline middleware runs after routing, so the limiter sees {provider}.
	webhooks := chi.Chain()
	if d.RateLimiter != nil && d.RateLimit > 0 {
		webhooks = chi.Chain(d.RateLimiter.Middleware(d.RateLimit))
	}
	r.With(webhooks...).Post("/webhooks/{provider}", webhookHandler.Receive)

	// WebSocket endpoint
	if d.Hub != nil {
		r.Get("/ws", d.Hub.HandleWebSocket)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(d.Registry, d.ReplayBackend, d.Breaker))
		r.Get("/metrics", dashHandler.Metrics)
	})

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
