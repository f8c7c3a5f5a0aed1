package manager

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is how often Run re-reconciles ownership.
const DefaultPollInterval = 10 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the clock driving Run. Defaults to the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithMetrics sets the metrics collector. Defaults to NopMetrics.
func WithMetrics(metrics Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithPollInterval sets the reconcile interval used by Run.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithBackOff sets the retry policy for store failures.
// The factory is called once per retried operation.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(m *Manager) {
		m.newBackOff = newBackOff
	}
}

// WithPollerFactory sets how pollers are built for claimed sources.
// Defaults to LogPollers.
func WithPollerFactory(factory PollerFactory) Option {
	return func(m *Manager) {
		m.newPoller = factory
	}
}

// defaultBackOff retries store failures for up to 30 seconds.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}
