package epochdriver

import (
	"github.com/marcus-miao/tagqueue/pkg/rvadmission"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters Driver updates once per epoch.
// Tracing/metrics plumbing is explicitly out of scope for the admission
// algorithm itself (spec.md §1), but the ambient stack still gets basic
// observability the way the teacher repo instruments everything with
// prometheus/client_golang.
type Metrics struct {
	admitted *prometheus.CounterVec
	deferred prometheus.Gauge
	epochs   prometheus.Counter
}

// NewMetrics constructs a Metrics and registers it against reg. A nil
// registry skips registration, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagqueue",
			Name:      "admitted_total",
			Help:      "Number of requests admitted, by priority bucket.",
		}, []string{"priority"}),
		deferred: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tagqueue",
			Name:      "deferred_requests",
			Help:      "Number of requests currently carried over in the deferred set.",
		}),
		epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tagqueue",
			Name:      "epochs_total",
			Help:      "Number of RunEpoch calls observed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.admitted, m.deferred, m.epochs)
	}
	return m
}

func (m *Metrics) observeDeferred(n int) {
	if m == nil {
		return
	}
	m.deferred.Set(float64(n))
}

func (m *Metrics) observeEpoch(b rvadmission.Buckets) {
	if m == nil {
		return
	}
	m.epochs.Inc()
	m.admitted.WithLabelValues(rvadmission.Batch.String()).Add(float64(len(b.Batch)))
	m.admitted.WithLabelValues(rvadmission.Default.String()).Add(float64(len(b.Default)))
	m.admitted.WithLabelValues(rvadmission.Immediate.String()).Add(float64(len(b.Immediate)))
}
