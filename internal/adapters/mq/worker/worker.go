// Package worker drains the assessment queue into the repository.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/moodscale/internal/adapters/mq/queue"
	"github.com/okian/moodscale/internal/adapters/repository"
	"github.com/okian/moodscale/pkg/logger"
	"github.com/okian/moodscale/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultAttempts       = 3
	defaultBackoff        = 50 * time.Millisecond
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Recorder persists a scored assessment.
type Recorder interface {
	Save(ctx context.Context, a queue.Item) error
}

// Queue defines how workers receive assessments.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Item
}

// Worker persists queued assessments using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// Counters are shared by the workers of a pool.
type Counters struct {
	Persisted  atomic.Int64
	Duplicates atomic.Int64
	Failed     atomic.Int64
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	recorder Recorder
	name     string

	attempts int
	backoff  time.Duration
	counters *Counters

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		recorder: recorder,
		name:     "worker",
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	if w.counters == nil {
		w.counters = &Counters{}
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case it, ok := <-items:
			if !ok {
				return
			}
			if err := w.persist(ctx, it); err != nil {
				w.logger.Error(ctx, "assessment dropped",
					logger.String("assessment_id", it.ID),
					logger.String("instrument", it.Instrument),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// persist saves one assessment, retrying transient failures with linear backoff.
func (w *InMemoryWorker) persist(ctx context.Context, it queue.Item) error { //nolint:gocritic // hugeParam: items travel by value through the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		err = w.recorder.Save(ctx, it)
		switch {
		case err == nil:
			w.counters.Persisted.Add(1)
			metrics.RecordAssessmentPersisted()
			return nil
		case errors.Is(err, repository.ErrDuplicate):
			w.counters.Duplicates.Add(1)
			metrics.RecordAssessmentDuplicate()
			w.logger.Warn(ctx, "assessment already stored",
				logger.String("assessment_id", it.ID),
				logger.String("submission_id", it.SubmissionID),
			)
			return nil
		}

		w.logger.Warn(ctx, "persist attempt failed",
			logger.String("assessment_id", it.ID),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
		if attempt == w.attempts {
			break
		}
		select {
		case <-ctx.Done():
			err = errors.Join(err, ctx.Err())
			attempt = w.attempts
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}

	w.counters.Failed.Add(1)
	metrics.RecordPersistenceError()
	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", "persist_error")
	metrics.RecordErrorByType("persist_error", "high")
	return fmt.Errorf("persist assessment %s: %w", it.ID, err)
}

// Pool manages multiple workers.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	counters *Counters

	logger logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every worker.
func NewPool(workerCount int, q Queue, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		counters: &Counters{},
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := range workerCount {
		workerOpts := append([]Option{
			WithName("worker-" + strconv.Itoa(i)),
			withCounters(pool.counters),
		}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, recorder, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Persisted returns the number of assessments written by the pool.
func (p *Pool) Persisted() int64 { return p.counters.Persisted.Load() }

// Duplicates returns the number of assessments the repository already held.
func (p *Pool) Duplicates() int64 { return p.counters.Duplicates.Load() }

// Failed returns the number of assessments dropped after exhausting retries.
func (p *Pool) Failed() int64 { return p.counters.Failed.Load() }

// Stop signals every worker to stop without draining the queue.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		select {
		case <-w.shutdown:
		default:
			close(w.shutdown)
		}
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
// Workers still busy when ctx or the pool timeout expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		p.Stop()
		return fmt.Errorf("worker pool drain: %w", shutdownCtx.Err())
	}

	p.logger.Info(ctx, "worker pool drained",
		logger.Int64("persisted", p.Persisted()),
		logger.Int64("failed", p.Failed()),
	)
	return nil
}
