package repository

import "time"

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *SQLStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

