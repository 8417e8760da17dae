package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts query engine activity. A nil *Metrics records nothing.
type Metrics struct {
	Hits     *prometheus.CounterVec
	Misses   *prometheus.CounterVec
	Canceled *prometheus.CounterVec
	Writes   prometheus.Counter
	Revision prometheus.Gauge
}

// NewMetrics creates the engine metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Hits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grove",
			Name:      "query_hits_total",
			Help:      "Query lookups served from the memo.",
		}, []string{"query"}),
		Misses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grove",
			Name:      "query_misses_total",
			Help:      "Query lookups that had to compute.",
		}, []string{"query"}),
		Canceled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grove",
			Name:      "query_canceled_total",
			Help:      "Query lookups abandoned because a write superseded their revision.",
		}, []string{"query"}),
		Writes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "grove",
			Name:      "input_writes_total",
			Help:      "Input write batches, one per revision.",
		}),
		Revision: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "grove",
			Name:      "revision",
			Help:      "Current revision of the query runtime.",
		}),
	}
}

func (m *Metrics) hit(name string) {
	if m != nil {
		m.Hits.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) miss(name string) {
	if m != nil {
		m.Misses.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) cancel(name string) {
	if m != nil {
		m.Canceled.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) write(rev Revision) {
	if m != nil {
		m.Writes.Inc()
		m.Revision.Set(float64(rev))
	}
}
