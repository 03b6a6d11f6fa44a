package handlers

import (
	"context"
	"log/slog"

	"github.com/Priya8975/webhook-ingest/internal/domain"
	"github.com/Priya8975/webhook-ingest/internal/engine"
	"github.com/Priya8975/webhook-ingest/internal/provider"
)

// DocumentsProvider is the name the document envelope provider is routed
// under; its secret is read from DOCUMENTS_WEBHOOK_SECRET.
const DocumentsProvider = "documents"

// Secrets are explicit signing secrets per provider. Empty values fall back
// to the environment lookup.
type Secrets struct {
	GitHub    string
	Shopify   string
	Stripe    string
	Documents string
}

// Providers returns the bundled providers keyed by route name.
func Providers(secrets Secrets) map[string]provider.Provider {
	return map[string]provider.Provider{
		"github":          provider.NewGitHub(secrets.GitHub, GitHubSchemas()),
		"shopify":         provider.NewShopify(secrets.Shopify, ShopifySchemas()),
		"stripe":          provider.NewStripe(secrets.Stripe, StripeSchemas()),
		DocumentsProvider: provider.NewEnvelope(DocumentsProvider, secrets.Documents, DocumentSchemas()),
	}
}

// Builders returns one builder per bundled provider with its events and
// handlers registered. Callers add replay protection, observers and limits
// before building.
func Builders(secrets Secrets, logger *slog.Logger) []engine.Builder {
	h := &logHandlers{logger: logger}
	p := Providers(secrets)
	return []engine.Builder{
		engine.New(p["github"]).
			Event("push", engine.On(h.githubPush)).
			Event("ping", engine.On(h.githubPing)),
		engine.New(p["shopify"]).
			Event("orders/create", engine.On(h.shopifyOrder)).
			Event("orders/paid", engine.On(h.shopifyOrder)),
		engine.New(p["stripe"]).
			Event("payment_intent.succeeded", engine.On(h.stripeEvent)).
			Event("payment_intent.payment_failed", engine.On(h.stripeEvent)).
			Event("invoice.paid", engine.On(h.stripeEvent)),
		engine.New(p[DocumentsProvider]).
			Event("document_status_updated", engine.On(h.documentStatus)),
	}
}

type logHandlers struct {
	logger *slog.Logger
}

func (h *logHandlers) githubPush(ctx context.Context, p GitHubPush, hc *domain.HandlerContext) error {
	h.logger.InfoContext(ctx, "github push received",
		"delivery_id", hc.DeliveryID,
		"repository", p.Repository.FullName,
		"ref", p.Ref,
		"commits", len(p.Commits),
	)
	return nil
}

func (h *logHandlers) githubPing(ctx context.Context, p GitHubPing, hc *domain.HandlerContext) error {
	h.logger.InfoContext(ctx, "github ping received", "delivery_id", hc.DeliveryID, "zen", p.Zen)
	return nil
}

func (h *logHandlers) shopifyOrder(ctx context.Context, p ShopifyOrder, hc *domain.HandlerContext) error {
	h.logger.InfoContext(ctx, "shopify order received",
		"event_type", hc.EventType,
		"delivery_id", hc.DeliveryID,
		"order_id", p.ID,
		"line_items", len(p.LineItems),
		"total_price", p.TotalPrice,
	)
	return nil
}

func (h *logHandlers) stripeEvent(ctx context.Context, p StripeEvent, hc *domain.HandlerContext) error {
	h.logger.InfoContext(ctx, "stripe event received",
		"event_type", hc.EventType,
		"event_id", p.ID,
		"object", p.Data.Object["object"],
	)
	return nil
}

func (h *logHandlers) documentStatus(ctx context.Context, p DocumentStatus, hc *domain.HandlerContext) error {
	h.logger.InfoContext(ctx, "document status updated",
		"provider", hc.Provider,
		"document_id", p.DocumentID,
		"status", p.Status,
		"nonce", p.Nonce,
	)
	return nil
}
