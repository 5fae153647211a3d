// Package metrics exposes Prometheus collectors for resynthesis runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "blueprint").
	Namespace string

	// Subsystem is the metrics subsystem (default: "resynth").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for state durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "blueprint",
		Subsystem: "resynth",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the resynthesis collectors. A nil *Metrics records nothing.
type Metrics struct {
	reconciliations *prometheus.CounterVec
	filesResolved   *prometheus.CounterVec
	stateDuration   *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	overrides       prometheus.Counter
}

// New registers the collectors.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconciliations_total",
			Help:        "Repository reconciliations by final state",
			ConstLabels: config.ConstLabels,
		}, []string{"state"}),

		filesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "files_resolved_total",
			Help:        "Files resolved by merge strategy and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"strategy", "outcome"}),

		stateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_duration_seconds",
			Help:        "Time spent in each reconciliation state",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"state"}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "errors_total",
			Help:        "Reconciliation failures by error code",
			ConstLabels: config.ConstLabels,
		}, []string{"state", "code"}),

		overrides: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "audited_overrides_total",
			Help:        "Existing files replaced by audited strategies",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// ObserveState records time spent in a state.
func (m *Metrics) ObserveState(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.stateDuration.WithLabelValues(state).Observe(d.Seconds())
}

// FileResolved counts one resolved path.
func (m *Metrics) FileResolved(strategy, outcome string) {
	if m == nil {
		return
	}
	m.filesResolved.WithLabelValues(strategy, outcome).Inc()
}

// Reconciled counts a finished reconciliation.
func (m *Metrics) Reconciled(state string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(state).Inc()
}

// Failed counts a failure in state. code is the error code, or "io".
func (m *Metrics) Failed(state, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(state, code).Inc()
}

// Override counts an audited override.
func (m *Metrics) Override() {
	if m == nil {
		return
	}
	m.overrides.Inc()
}
