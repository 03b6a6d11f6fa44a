package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Priya8975/webhook-ingest/internal/provider"
)

const maxResponseBody = 1024

// Job is one signed delivery to an ingestion endpoint.
type Job struct {
	Provider   provider.Provider
	URL        string
	EventType  string
	DeliveryID string
	Body       []byte
	Secret     string
	// Headers are added after provider stamping and signing.
	Headers map[string]string
}

// Attempt is the outcome of one delivery.
type Attempt struct {
	Job          Job
	StatusCode   int
	ResponseBody string
	Duration     time.Duration
	Err          error
}

// Success reports a 2xx response.
func (a Attempt) Success() bool {
	return a.Err == nil && a.StatusCode >= 200 && a.StatusCode < 300
}

// Deliverer signs webhook bodies the way the provider would and POSTs them.
type Deliverer struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDeliverer(logger *slog.Logger) *Deliverer {
	return &Deliverer{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// WithHTTPClient swaps the client, e.g. for httptest servers.
func (d *Deliverer) WithHTTPClient(c *http.Client) *Deliverer {
	d.httpClient = c
	return d
}

// SignedHeaders returns the stamping and signature headers for job.
func SignedHeaders(job Job) (map[string]string, error) {
	headers := map[string]string{"content-type": "application/json"}
	if stamper, ok := job.Provider.(provider.Stamper); ok {
		for k, v := range stamper.Stamp(job.EventType, job.DeliveryID) {
			if v != "" {
				headers[k] = v
			}
		}
	}
	if job.Secret != "" {
		signer, ok := job.Provider.(provider.Signer)
		if !ok {
			return nil, fmt.Errorf("provider %s cannot sign deliveries", job.Provider.Name())
		}
		for k, v := range signer.Sign(job.Body, job.Secret) {
			headers[k] = v
		}
	}
	for k, v := range job.Headers {
		headers[k] = v
	}
	return headers, nil
}

// Deliver sends the body via HTTP POST and logs the attempt.
func (d *Deliverer) Deliver(ctx context.Context, job Job) Attempt {
	start := time.Now()
	attempt := Attempt{Job: job}

	headers, err := SignedHeaders(job)
	if err != nil {
		return d.record(attempt, start, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewReader(job.Body))
	if err != nil {
		return d.record(attempt, start, fmt.Errorf("creating request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return d.record(attempt, start, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	attempt.StatusCode = resp.StatusCode
	attempt.ResponseBody = string(body)
	return d.record(attempt, start, nil)
}

func (d *Deliverer) record(attempt Attempt, start time.Time, err error) Attempt {
	attempt.Duration = time.Since(start)
	attempt.Err = err

	if attempt.Success() {
		d.logger.Info("delivery successful",
			"provider", attempt.Job.Provider.Name(),
			"event_type", attempt.Job.EventType,
			"delivery_id", attempt.Job.DeliveryID,
			"status_code", attempt.StatusCode,
			"response_time_ms", attempt.Duration.Milliseconds(),
		)
	} else {
		d.logger.Warn("delivery failed",
			"provider", attempt.Job.Provider.Name(),
			"event_type", attempt.Job.EventType,
			"delivery_id", attempt.Job.DeliveryID,
			"status_code", attempt.StatusCode,
			"error", err,
			"response_time_ms", attempt.Duration.Milliseconds(),
		)
	}
	return attempt
}
