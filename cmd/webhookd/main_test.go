package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Priya8975/webhook-ingest/internal/api"
	"github.com/Priya8975/webhook-ingest/internal/config"
	"github.com/Priya8975/webhook-ingest/internal/handlers"
	"github.com/Priya8975/webhook-ingest/internal/observe"
	"github.com/Priya8975/webhook-ingest/internal/store"
	"github.com/Priya8975/webhook-ingest/internal/worker"
)

const pushBody = `{"ref":"refs/heads/main","repository":{"full_name":"acme/api"}}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(backend string) *config.Config {
	return &config.Config{
		ReplayBackend:   backend,
		SQLitePath:      ":memory:",
		ReplayLease:     time.Minute,
		ReplayRetention: time.Hour,
		MaxBodyBytes:    1 << 20,
		HandlerTimeout:  5 * time.Second,
	}
}

func TestOpenReplayStore(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := openReplayStore(ctx, testConfig(config.BackendNone), testLogger())
	if err != nil || s != nil {
		t.Errorf("none backend = (%v, %v), want (nil, nil)", s, err)
	}
	closeFn()

	s, closeFn, err = openReplayStore(ctx, testConfig(config.BackendMemory), testLogger())
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := s.(*store.MemoryStore); !ok {
		t.Errorf("memory backend = %T", s)
	}
	closeFn()

	s, closeFn, err = openReplayStore(ctx, testConfig(config.BackendSQLite), testLogger())
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	if _, ok := s.(purger); !ok {
		t.Errorf("sqlite store should support purging")
	}
	closeFn()

	if _, _, err := openReplayStore(ctx, testConfig("etcd"), testLogger()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestBuildEngines(t *testing.T) {
	engines := buildEngines(testConfig(config.BackendNone), nil, nil, testLogger())
	if len(engines) != len(handlers.Providers(handlers.Secrets{})) {
		t.Fatalf("got %d engines", len(engines))
	}
}

func setupServe(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("GITHUB_WEBHOOK_SECRET", "gh-secret")

	agg := observe.NewAggregator()
	breaker := store.NewBreaker(store.NewMemory(store.ReplayOptions{}), testLogger())
	engines := buildEngines(testConfig(config.BackendMemory), breaker, []observe.Observer{agg.Observer()}, testLogger())

	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Registry:   api.NewRegistry(engines...),
		Aggregator: agg,
		Breaker:    breaker,
		Logger:     testLogger(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func githubJob(srv *httptest.Server) worker.Job {
	return worker.Job{
		Provider:   handlers.Providers(handlers.Secrets{})["github"],
		URL:        srv.URL + "/webhooks/github",
		EventType:  "push",
		DeliveryID: "delivery-1",
		Body:       []byte(pushBody),
		Secret:     "gh-secret",
	}
}

func TestSendAll_DuplicatesRejected(t *testing.T) {
	srv := setupServe(t)

	summary := sendAll(context.Background(), worker.NewDeliverer(testLogger()), githubJob(srv), 5, 3, false, testLogger())
	if summary.failed != 0 {
		t.Fatalf("failed = %d, want 0", summary.failed)
	}
	if summary.byStatus[http.StatusOK] != 1 {
		t.Errorf("200s = %d, want 1", summary.byStatus[http.StatusOK])
	}
	if summary.byStatus[http.StatusConflict] != 4 {
		t.Errorf("409s = %d, want 4", summary.byStatus[http.StatusConflict])
	}
}

func TestSendAll_UniqueDeliveries(t *testing.T) {
	srv := setupServe(t)

	summary := sendAll(context.Background(), worker.NewDeliverer(testLogger()), githubJob(srv), 4, 2, true, testLogger())
	if summary.byStatus[http.StatusOK] != 4 {
		t.Errorf("200s = %d, want 4 (%v)", summary.byStatus[http.StatusOK], summary.byStatus)
	}
	if codes := summary.codes(); len(codes) != 1 {
		t.Errorf("codes = %v, want only 200", codes)
	}
}

func TestSignCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(path, []byte(pushBody), 0o600); err != nil {
		t.Fatalf("write body: %v", err)
	}

	cmd := newSignCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--provider", "github", "--event", "push", "--delivery", "d-1", "--secret", "s", "--file", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sign: %v", err)
	}

	got := out.String()
	for _, want := range []string{"x-github-event: push", "x-github-delivery: d-1", "x-hub-signature-256: sha256="} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestSignCmd_UnknownProvider(t *testing.T) {
	cmd := newSignCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--provider", "gitlab", "--secret", "s"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("err = %v, want unknown provider", err)
	}
}

func TestSigningSecret(t *testing.T) {
	gh := handlers.Providers(handlers.Secrets{})["github"]

	t.Setenv("WEBHOOK_SECRET", "shared")
	if got := signingSecret(gh, ""); got != "shared" {
		t.Errorf("shared fallback = %q", got)
	}
	t.Setenv("GITHUB_WEBHOOK_SECRET", "gh")
	if got := signingSecret(gh, ""); got != "gh" {
		t.Errorf("provider env = %q", got)
	}
	if got := signingSecret(gh, "flag"); got != "flag" {
		t.Errorf("explicit = %q", got)
	}
}
