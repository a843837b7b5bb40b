package service

import (
	"time"

	"github.com/okian/moodscale/internal/adapters/repository"
	"github.com/okian/moodscale/internal/domain/instrument"
	"github.com/okian/moodscale/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of persistence workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the assessment queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the assessment store. The service does not close a store
// it was given.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRegistry replaces the built-in instrument catalog.
func WithRegistry(r *instrument.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithDefaultLocale sets the locale used when a request names none.
// Empty keeps each instrument's own locale.
func WithDefaultLocale(locale string) Option {
	return func(s *Service) {
		s.defaultLocale = locale
	}
}

// WithMaxHistoryLimit caps the number of assessments History returns.
func WithMaxHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxHistoryLimit = limit
		}
	}
}

// WithClock overrides the time source used to stamp assessments.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
