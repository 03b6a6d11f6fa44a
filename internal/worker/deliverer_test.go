package worker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/Priya8975/webhook-ingest/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSignedHeaders(t *testing.T) {
	tests := []struct {
		name  string
		job   Job
		check func(t *testing.T, h map[string]string)
	}{
		{
			name: "github stamps and signs",
			job:  Job{Provider: provider.NewGitHub("", nil), EventType: "push", DeliveryID: "d-1", Body: []byte(`{}`), Secret: "s"},
			check: func(t *testing.T, h map[string]string) {
				if h["x-github-event"] != "push" || h["x-github-delivery"] != "d-1" {
					t.Errorf("missing stamp headers: %v", h)
				}
				if !provider.NewGitHub("", nil).Verify([]byte(`{}`), h, "s") {
					t.Error("signature should verify")
				}
			},
		},
		{
			name: "stripe signs without stamping",
			job:  Job{Provider: provider.NewStripe("", nil), EventType: "charge.succeeded", Body: []byte(`{"type":"charge.succeeded"}`), Secret: "whsec"},
			check: func(t *testing.T, h map[string]string) {
				if h["stripe-signature"] == "" {
					t.Errorf("missing stripe signature: %v", h)
				}
			},
		},
		{
			name: "no secret leaves body unsigned",
			job:  Job{Provider: provider.NewShopify("", nil), EventType: "orders/create", Body: []byte(`{}`)},
			check: func(t *testing.T, h map[string]string) {
				if _, ok := h["x-shopify-hmac-sha256"]; ok {
					t.Error("unsigned job should not carry a signature")
				}
				if h["x-shopify-topic"] != "orders/create" {
					t.Errorf("missing topic: %v", h)
				}
			},
		},
		{
			name: "explicit headers win",
			job:  Job{Provider: provider.NewGitHub("", nil), EventType: "push", Body: []byte(`{}`), Headers: map[string]string{"x-github-event": "ping"}},
			check: func(t *testing.T, h map[string]string) {
				if h["x-github-event"] != "ping" {
					t.Errorf("override ignored: %v", h)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := SignedHeaders(tt.job)
			if err != nil {
				t.Fatalf("SignedHeaders: %v", err)
			}
			tt.check(t, h)
		})
	}
}

func TestSignedHeaders_ProviderWithoutSigner(t *testing.T) {
	job := Job{Provider: provider.Custom{Base: provider.Base{ID: "acme"}}, Body: []byte(`{}`), Secret: "s"}
	if _, err := SignedHeaders(job); err == nil {
		t.Error("expected error for provider without a signer")
	}
}

func TestDeliverer_Deliver(t *testing.T) {
	var (
		gotBody    []byte
		gotHeaders http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	d := NewDeliverer(testLogger()).WithHTTPClient(server.Client())
	attempt := d.Deliver(context.Background(), Job{
		Provider:   provider.NewGitHub("", nil),
		URL:        server.URL,
		EventType:  "push",
		DeliveryID: "d-1",
		Body:       []byte(`{"ref":"main"}`),
		Secret:     "s3cr3t",
	})

	if !attempt.Success() {
		t.Fatalf("expected success, got %+v", attempt)
	}
	if attempt.ResponseBody != `{"ok":true}` {
		t.Errorf("response body = %q", attempt.ResponseBody)
	}
	if string(gotBody) != `{"ref":"main"}` {
		t.Errorf("server got body %q", gotBody)
	}
	if gotHeaders.Get("X-GitHub-Event") != "push" || gotHeaders.Get("X-Hub-Signature-256") == "" {
		t.Errorf("server got headers %v", gotHeaders)
	}
}

func TestDeliverer_FailedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	attempt := NewDeliverer(testLogger()).Deliver(context.Background(), Job{
		Provider: provider.NewGitHub("", nil),
		URL:      server.URL,
		Body:     []byte(`{}`),
	})
	if attempt.Success() || attempt.StatusCode != http.StatusUnauthorized {
		t.Errorf("unexpected attempt %+v", attempt)
	}
}

func TestDeliverer_ConnectionError(t *testing.T) {
	attempt := NewDeliverer(testLogger()).Deliver(context.Background(), Job{
		Provider: provider.NewGitHub("", nil),
		URL:      "http://127.0.0.1:1",
		Body:     []byte(`{}`),
	})
	if attempt.Err == nil || attempt.Success() {
		t.Errorf("expected connection error, got %+v", attempt)
	}
}

func TestPool_DeliversEveryJob(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Header.Get("X-GitHub-Delivery")]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pool := NewPool(4, NewDeliverer(testLogger()), testLogger())
	pool.Start(context.Background())

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	go func() {
		for _, id := range ids {
			pool.Submit(Job{Provider: provider.NewGitHub("", nil), URL: server.URL, EventType: "push", DeliveryID: id, Body: []byte(`{}`)})
		}
		pool.Stop()
	}()

	successes := 0
	for attempt := range pool.Results() {
		if attempt.Success() {
			successes++
		}
	}
	if successes != len(ids) {
		t.Errorf("successes = %d, want %d", successes, len(ids))
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Errorf("delivery %s seen %d times", id, seen[id])
		}
	}
}

func TestPool_CancelledContextSkipsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewPool(1, NewDeliverer(testLogger()), testLogger())
	pool.Start(ctx)
	go func() {
		pool.Submit(Job{Provider: provider.NewGitHub("", nil), URL: "http://127.0.0.1:1", Body: []byte(`{}`)})
		pool.Stop()
	}()
	for attempt := range pool.Results() {
		if attempt.Err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", attempt.Err)
		}
	}
}
