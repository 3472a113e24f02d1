// Package worker runs finalize jobs taken off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/studyroom/internal/adapters/mq/queue"
	"github.com/okian/studyroom/pkg/logger"
	"github.com/okian/studyroom/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Finalizer turns a finished session into per-participant results.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID string) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes finalize jobs one at a time.
type Worker struct {
	queue     Queue
	finalizer Finalizer
	name      string
	logger    logger.Logger

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewWorker creates a worker reading from q.
func NewWorker(q Queue, f Finalizer, opts ...Option) *Worker {
	w := &Worker{
		queue:     q,
		finalizer: f,
		name:      "worker",
		logger:    logger.Get().Named("worker"),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes jobs until ctx is done, Shutdown is called or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(logger.WithSession(ctx, job.SessionID), "finalize failed",
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown signals the worker and waits for the current job to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) process(ctx context.Context, job queue.Job) error {
	start := time.Now()
	ctx = logger.WithSession(ctx, job.SessionID)
	if err := w.finalizer.Finalize(ctx, job.SessionID); err != nil {
		metrics.RecordFinalizeFailed()
		metrics.RecordErrorByComponent("worker", "finalize_error")
		metrics.RecordErrorByType("finalize_error", "high")
		return fmt.Errorf("finalize %s: %w", job.SessionID, err)
	}
	metrics.RecordFinalizeProcessed(float64(time.Since(start).Microseconds()) / 1000)
	w.logger.Debug(ctx, "session finalized",
		logger.Duration("waited", start.Sub(job.RequestedAt)),
	)
	return nil
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*Worker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. A non-positive count uses NumCPU.
func NewPool(workerCount int, q Queue, f Finalizer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*Worker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewWorker(q, f, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue if it can be closed, then waits for the workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
