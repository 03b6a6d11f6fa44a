package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/Priya8975/webhook-ingest/internal/domain"
	"github.com/Priya8975/webhook-ingest/internal/engine"
	"github.com/Priya8975/webhook-ingest/internal/provider"
)

var testSecrets = Secrets{GitHub: "gh", Shopify: "shop", Stripe: "whsec", Documents: "docs"}

func noEnv(string) (string, bool) { return "", false }

func buildEngines(t *testing.T) (map[string]*engine.Engine, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	engines := map[string]*engine.Engine{}
	for _, b := range Builders(testSecrets, logger) {
		e := b.WithSecretLookup(noEnv).Build()
		engines[e.Provider().Name()] = e
	}
	return engines, &logs
}

func signedRequest(t *testing.T, p provider.Provider, secret, eventType, deliveryID, body string) domain.Request {
	t.Helper()
	h := http.Header{}
	if st, ok := p.(provider.Stamper); ok {
		for k, v := range st.Stamp(eventType, deliveryID) {
			h.Set(k, v)
		}
	}
	signer, ok := p.(provider.Signer)
	if !ok {
		t.Fatalf("%s cannot sign", p.Name())
	}
	for k, v := range signer.Sign([]byte(body), secret) {
		h.Set(k, v)
	}
	return domain.Request{Headers: h, RawBody: []byte(body)}
}

func TestBuilders_RegistersEveryProvider(t *testing.T) {
	engines, _ := buildEngines(t)

	want := map[string][]string{
		"github":          {"push", "ping"},
		"shopify":         {"orders/create", "orders/paid"},
		"stripe":          {"payment_intent.succeeded", "payment_intent.payment_failed", "invoice.paid"},
		DocumentsProvider: {"document_status_updated"},
	}
	if len(engines) != len(want) {
		t.Fatalf("got %d engines, want %d", len(engines), len(want))
	}
	for name, events := range want {
		e, ok := engines[name]
		if !ok {
			t.Errorf("missing engine for %s", name)
			continue
		}
		for _, ev := range events {
			if !e.Handles(ev) {
				t.Errorf("%s does not handle %q", name, ev)
			}
		}
	}
}

func TestBundledEvents(t *testing.T) {
	engines, logs := buildEngines(t)

	tests := []struct {
		name      string
		provider  string
		secret    string
		eventType string
		delivery  string
		body      string
		status    int
		logged    string
	}{
		{
			name: "github push", provider: "github", secret: testSecrets.GitHub,
			eventType: "push", delivery: "gh-1",
			body:   `{"ref":"refs/heads/main","repository":{"full_name":"acme/api"},"commits":[{"id":"abc"}]}`,
			status: http.StatusOK, logged: "acme/api",
		},
		{
			name: "github push missing ref", provider: "github", secret: testSecrets.GitHub,
			eventType: "push", delivery: "gh-2",
			body:   `{"repository":{"full_name":"acme/api"}}`,
			status: http.StatusBadRequest,
		},
		{
			name: "github ping", provider: "github", secret: testSecrets.GitHub,
			eventType: "ping", delivery: "gh-3",
			body:   `{"zen":"Keep it logically awesome.","hook_id":42}`,
			status: http.StatusOK, logged: "logically awesome",
		},
		{
			name: "shopify order", provider: "shopify", secret: testSecrets.Shopify,
			eventType: "orders/create", delivery: "sh-1",
			body:   `{"id":450789469,"total_price":"19.99","line_items":[{"sku":"TEE","quantity":2}]}`,
			status: http.StatusOK, logged: "shopify order received",
		},
		{
			name: "shopify order zero quantity", provider: "shopify", secret: testSecrets.Shopify,
			eventType: "orders/create", delivery: "sh-2",
			body:   `{"id":1,"line_items":[{"sku":"TEE","quantity":0}]}`,
			status: http.StatusBadRequest,
		},
		{
			name: "stripe payment", provider: "stripe", secret: testSecrets.Stripe,
			eventType: "payment_intent.succeeded",
			body:      `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"object":"payment_intent"}}}`,
			status:    http.StatusOK, logged: "evt_1",
		},
		{
			name: "stripe unhandled type", provider: "stripe", secret: testSecrets.Stripe,
			eventType: "customer.created",
			body:      `{"id":"evt_2","type":"customer.created","data":{"object":{}}}`,
			status:    http.StatusNoContent,
		},
		{
			name: "document status", provider: DocumentsProvider, secret: testSecrets.Documents,
			eventType: "document_status_updated", delivery: "doc-1",
			body:   `{"type":"document_status_updated","nonce":"n-1","payload":{"document_id":"doc_9","status":"signed"}}`,
			status: http.StatusOK, logged: "doc_9",
		},
		{
			name: "document ready", provider: DocumentsProvider, secret: testSecrets.Documents,
			eventType: "document_status_updated", delivery: "doc-3",
			body:   `{"type":"document_status_updated","payload":{"document_id":"d1","status":"ready"},"nonce":"n1"}`,
			status: http.StatusOK, logged: `"status":"ready"`,
		},
		{
			name: "document unknown status", provider: DocumentsProvider, secret: testSecrets.Documents,
			eventType: "document_status_updated", delivery: "doc-2",
			body:   `{"type":"document_status_updated","nonce":"n-2","payload":{"document_id":"doc_9","status":"lost"}}`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := engines[tt.provider]
			req := signedRequest(t, e.Provider(), tt.secret, tt.eventType, tt.delivery, tt.body)

			res := e.Process(context.Background(), req)
			if res.Status != tt.status {
				t.Fatalf("status = %d, want %d (err: %v)", res.Status, tt.status, res.Err)
			}
			if tt.logged != "" && !strings.Contains(logs.String(), tt.logged) {
				t.Errorf("handler log missing %q", tt.logged)
			}
		})
	}
}

func TestDocumentStatus_NonceReachesHandler(t *testing.T) {
	engines, logs := buildEngines(t)
	e := engines[DocumentsProvider]

	body := `{"type":"document_status_updated","nonce":"nonce-77","payload":{"document_id":"doc_1","status":"viewed"}}`
	res := e.Process(context.Background(), signedRequest(t, e.Provider(), testSecrets.Documents, "", "doc-1", body))
	if res.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (err: %v)", res.Status, res.Err)
	}
	if !strings.Contains(logs.String(), `"nonce":"nonce-77"`) {
		t.Errorf("logs = %s, want nonce-77", logs.String())
	}
}

func TestProviders_CanSign(t *testing.T) {
	for name, p := range Providers(Secrets{}) {
		if p.Name() != name {
			t.Errorf("provider %q reports name %q", name, p.Name())
		}
		if _, ok := p.(provider.Signer); !ok {
			t.Errorf("provider %q cannot sign", name)
		}
	}
}
