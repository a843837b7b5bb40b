package worker

import (
	"time"

	"github.com/okian/moodscale/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetry sets how many times a save is attempted and the base backoff
// between attempts. The n-th retry waits n*backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(w *InMemoryWorker) {
		if attempts > 0 {
			w.attempts = attempts
		}
		if backoff >= 0 {
			w.backoff = backoff
		}
	}
}

func withCounters(c *Counters) Option {
	return func(w *InMemoryWorker) {
		w.counters = c
	}
}
