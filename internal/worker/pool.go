package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Pool manages a fixed number of worker goroutines that deliver jobs.
type Pool struct {
	numWorkers int
	jobs       chan Job
	results    chan Attempt
	deliverer  *Deliverer
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(numWorkers int, deliverer *Deliverer, logger *slog.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numWorkers*2),
		results:    make(chan Attempt, numWorkers*2),
		deliverer:  deliverer,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They read from the jobs channel
// until it is closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit sends a job to the worker pool via the jobs channel.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
}

// Results streams one Attempt per submitted job. It is closed by Stop
// once every worker has exited, so callers must drain it concurrently.
func (p *Pool) Results() <-chan Attempt {
	return p.results
}

// Stop closes the jobs channel and waits for all workers to finish.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		select {
		case <-ctx.Done():
			p.results <- Attempt{Job: job, Err: ctx.Err()}
		default:
			p.results <- p.deliverer.Deliver(ctx, job)
		}
	}
}
