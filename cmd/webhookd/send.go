package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Priya8975/webhook-ingest/internal/engine"
	"github.com/Priya8975/webhook-ingest/internal/handlers"
	"github.com/Priya8975/webhook-ingest/internal/provider"
	"github.com/Priya8975/webhook-ingest/internal/worker"
)

type deliveryFlags struct {
	provider string
	event    string
	delivery string
	secret   string
	file     string
}

func (f *deliveryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "github", "Bundled provider name")
	cmd.Flags().StringVar(&f.event, "event", "", "Event type stamped into provider headers")
	cmd.Flags().StringVar(&f.delivery, "delivery", "", "Delivery id (random when empty)")
	cmd.Flags().StringVar(&f.secret, "secret", "", "Signing secret (defaults to the provider's env secret)")
	cmd.Flags().StringVar(&f.file, "file", "-", "Body file, - for stdin")
}

// job resolves the provider, secret and body into a delivery job.
func (f *deliveryFlags) job() (worker.Job, error) {
	p, ok := handlers.Providers(handlers.Secrets{})[f.provider]
	if !ok {
		return worker.Job{}, fmt.Errorf("unknown provider %q", f.provider)
	}
	body, err := readBody(f.file)
	if err != nil {
		return worker.Job{}, err
	}
	delivery := f.delivery
	if delivery == "" {
		delivery = uuid.NewString()
	}
	return worker.Job{
		Provider:   p,
		EventType:  f.event,
		DeliveryID: delivery,
		Body:       body,
		Secret:     signingSecret(p, f.secret),
	}, nil
}

func readBody(path string) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if path == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

// signingSecret mirrors the server's lookup: flag, then the provider's own
// env var, then the shared one.
func signingSecret(p provider.Provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(engine.SecretEnvName(p.Name())); v != "" {
		return v
	}
	return os.Getenv(engine.SharedSecretEnv)
}

func newSignCmd() *cobra.Command {
	var flags deliveryFlags
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the headers a provider would send with a body",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := flags.job()
			if err != nil {
				return err
			}
			if job.Secret == "" {
				return fmt.Errorf("no signing secret for %s", job.Provider.Name())
			}
			headers, err := worker.SignedHeaders(job)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(headers))
			for name := range headers {
				names = append(names, name)
			}
			sort.Strings(names)
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%s: %s\n", name, headers[name])
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newSendCmd() *cobra.Command {
	var (
		flags       deliveryFlags
		serverURL   string
		count       int
		concurrency int
		unique      bool
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sign a body and POST it to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := flags.job()
			if err != nil {
				return err
			}
			job.URL = strings.TrimRight(serverURL, "/") + "/webhooks/" + job.Provider.Name()

			logger := newLogger(slog.LevelWarn)
			return runWithSignals(func(ctx context.Context) error {
				summary := sendAll(ctx, worker.NewDeliverer(logger), job, count, concurrency, unique, logger)
				out := cmd.OutOrStdout()
				for _, code := range summary.codes() {
					fmt.Fprintf(out, "%d: %d\n", code, summary.byStatus[code])
				}
				if summary.failed > 0 {
					fmt.Fprintf(out, "errors: %d\n", summary.failed)
					return exitError{code: 1}
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server base URL")
	cmd.Flags().IntVar(&count, "count", 1, "Number of copies to send")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Concurrent senders")
	cmd.Flags().BoolVar(&unique, "unique", false, "Give every copy its own delivery id")
	return cmd
}
