package main

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/Priya8975/webhook-ingest/internal/worker"
)

type sendSummary struct {
	byStatus map[int]int
	failed   int
}

func (s sendSummary) codes() []int {
	codes := make([]int, 0, len(s.byStatus))
	for code := range s.byStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// sendAll delivers count copies of job through a worker pool. Copies share
// the delivery id unless unique is set, which exercises replay protection.
func sendAll(ctx context.Context, d *worker.Deliverer, job worker.Job, count, concurrency int, unique bool, logger *slog.Logger) sendSummary {
	if count < 1 {
		count = 1
	}
	pool := worker.NewPool(concurrency, d, logger)
	pool.Start(ctx)

	go func() {
		for i := 0; i < count; i++ {
			j := job
			if unique {
				j.DeliveryID = uuid.NewString()
			}
			pool.Submit(j)
		}
		pool.Stop()
	}()

	summary := sendSummary{byStatus: map[int]int{}}
	for attempt := range pool.Results() {
		if attempt.Err != nil {
			summary.failed++
			continue
		}
		summary.byStatus[attempt.StatusCode]++
	}
	return summary
}
