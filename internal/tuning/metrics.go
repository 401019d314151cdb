package tuning

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the Prometheus gauges/counters exported at /metrics,
// mirroring the hit-rate/avg-tokens/satisfaction fields Stats already
// tracks so both surfaces stay in lockstep.
type Metrics struct {
	HitRate           prometheus.Gauge
	AvgTokensInjected prometheus.Gauge
	SatisfactionRate  prometheus.Gauge
	RetrievalsTotal   prometheus.Counter
	AlphaCurrent      prometheus.Gauge
}

// NewMetrics registers the engine's gauges/counters against registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hmem", Name: "retrieval_hit_rate",
			Help: "Fraction of recent retrievals that matched at least one theme.",
		}),
		AvgTokensInjected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hmem", Name: "avg_tokens_injected",
			Help: "Average tokens injected per retrieval over the observability window.",
		}),
		SatisfactionRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hmem", Name: "satisfaction_rate",
			Help: "Fraction of recent retrievals rated satisfied.",
		}),
		RetrievalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmem", Name: "retrievals_total",
			Help: "Total number of before_prompt_build retrievals served.",
		}),
		AlphaCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hmem", Name: "retrieval_alpha",
			Help: "Current Stage I coverage/relevance tradeoff parameter.",
		}),
	}
	registry.MustRegister(m.HitRate, m.AvgTokensInjected, m.SatisfactionRate, m.RetrievalsTotal, m.AlphaCurrent)
	return m
}

// Update refreshes the gauges from a Stats snapshot and current alpha.
func (m *Metrics) Update(s Stats, alpha float64) {
	m.HitRate.Set(s.HitRate)
	m.AvgTokensInjected.Set(s.AvgTokensInjected)
	m.SatisfactionRate.Set(s.SatisfactionRate)
	m.AlphaCurrent.Set(alpha)
}
