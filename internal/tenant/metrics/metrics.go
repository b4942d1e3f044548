package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers tenant resolution and tenant-scoped transactions. A nil
// *Metrics records nothing.
type Metrics struct {
	Resolutions     *prometheus.CounterVec
	ResolveDuration prometheus.Histogram
	ScopedTx        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopcore_tenant_resolutions_total",
			Help: "Tenant resolutions by outcome (resolved or the denial code)",
		}, []string{"outcome"}),
		ResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shopcore_tenant_resolve_duration_seconds",
			Help:    "Duration of tenant resolution",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		ScopedTx: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopcore_tenant_scoped_tx_total",
			Help: "Tenant-scoped transactions by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveResolution(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncScopedTx(outcome string) {
	if m == nil {
		return
	}
	m.ScopedTx.WithLabelValues(outcome).Inc()
}
