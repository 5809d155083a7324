package metrics

import "github.com/prometheus/client_golang/prometheus"

// Scoring and extraction metrics.
var (
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Document text extractions by format and result",
		},
		[]string{"format", "result"}, // success / empty / parse_error / unsupported / too_large
	)

	ScoreValue = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_value",
			Help:      "Distribution of computed match scores",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 75, 80, 90, 100},
		},
	)

	ScoreTierTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_tier_total",
			Help:      "Scored requests by feedback tier",
		},
		[]string{"tier"},
	)

	ScoringFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_failures_total",
			Help:      "Scoring attempts that fell back to a zero score",
		},
		[]string{"reason"},
	)
)

var scoringMetricsRegistered bool

// RegisterScoringMetrics registers scoring metrics on the default registry. Call once from main.
func RegisterScoringMetrics() {
	if scoringMetricsRegistered {
		return
	}
	prometheus.MustRegister(ExtractionsTotal, ScoreValue, ScoreTierTotal, ScoringFailuresTotal)
	scoringMetricsRegistered = true
}
