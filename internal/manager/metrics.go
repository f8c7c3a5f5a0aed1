package manager

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records manager activity.
type Metrics interface {
	// RecordClaim counts a claim outcome ("claimed", "already_claimed", "error").
	RecordClaim(result string)
	// RecordRelease counts a release issued by this master.
	RecordRelease()
	// SetActivePollers reports how many pollers are running.
	SetActivePollers(n int)
}

// NopMetrics discards all metrics.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements Metrics.
var _ Metrics = NopMetrics{}

// RecordClaim discards the claim outcome.
func (NopMetrics) RecordClaim(string) {}

// RecordRelease discards the release.
func (NopMetrics) RecordRelease() {}

// SetActivePollers discards the poller count.
func (NopMetrics) SetActivePollers(int) {}

// PrometheusMetrics implements Metrics backed by Prometheus.
type PrometheusMetrics struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	claims   *prometheus.CounterVec
	releases prometheus.Counter
	pollers  prometheus.Gauge
}

// Compile-time assertion that PrometheusMetrics implements Metrics.
var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a Prometheus-backed collector.
// Uses prometheus.DefaultRegisterer if reg is nil and "csledger" if namespace is empty.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "csledger"
	}
	return &PrometheusMetrics{reg: reg, namespace: namespace}
}

func (p *PrometheusMetrics) ensureRegistered() {
	p.once.Do(func() {
		p.claims = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "manager",
			Name:      "claims_total",
			Help:      "Total change-source claim attempts by result.",
		}, []string{"result"})

		p.releases = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "manager",
			Name:      "releases_total",
			Help:      "Total change-source claims released by this master.",
		})

		p.pollers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "manager",
			Name:      "active_pollers",
			Help:      "Number of pollers currently running on this master.",
		})

		p.reg.MustRegister(p.claims, p.releases, p.pollers)
	})
}

// RecordClaim increments the claim counter for result.
func (p *PrometheusMetrics) RecordClaim(result string) {
	p.ensureRegistered()
	p.claims.WithLabelValues(result).Inc()
}

// RecordRelease increments the release counter.
func (p *PrometheusMetrics) RecordRelease() {
	p.ensureRegistered()
	p.releases.Inc()
}

// SetActivePollers sets the active poller gauge.
func (p *PrometheusMetrics) SetActivePollers(n int) {
	p.ensureRegistered()
	p.pollers.Set(float64(n))
}
