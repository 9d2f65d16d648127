package capability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mcastguard"

// Metrics собирает счетчики захвата/освобождения. Методы безопасны для nil.
type Metrics struct {
	acquires        prometheus.Counter
	acquireFailures prometheus.Counter
	releases        prometheus.Counter
	releaseFailures prometheus.Counter
	held            prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		acquires: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "capability_acquires_total",
			Help:      "Successful multicast capability acquisitions.",
		}),
		acquireFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "capability_acquire_failures_total",
			Help:      "Multicast capability acquisitions that failed.",
		}),
		releases: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "capability_releases_total",
			Help:      "Multicast capability releases, including failed ones.",
		}),
		releaseFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "capability_release_failures_total",
			Help:      "Multicast capability releases rejected by the platform.",
		}),
		held: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "capability_held",
			Help:      "1 while the multicast capability is held.",
		}),
	}
}

func (m *Metrics) recordAcquire() {
	if m == nil {
		return
	}
	m.acquires.Inc()
	m.held.Set(1)
}

func (m *Metrics) recordAcquireFailure() {
	if m == nil {
		return
	}
	m.acquireFailures.Inc()
}

func (m *Metrics) recordRelease() {
	if m == nil {
		return
	}
	m.releases.Inc()
	m.held.Set(0)
}

func (m *Metrics) recordReleaseFailure() {
	if m == nil {
		return
	}
	m.releaseFailures.Inc()
}
