// Package metrics exposes the engine's Prometheus collectors: store
// size, stage state transitions, and per-file parser outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreSize reports the number of records currently held by the
	// email store.
	StoreSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "corpus_store_size",
		Help: "Number of email records currently held in the store",
	})

	// StageTransitionsTotal counts every attempted stage lifecycle
	// transition, labeled by plugin, origin state, destination state,
	// and whether it was accepted.
	StageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpus_stage_transitions_total",
			Help: "Total stage lifecycle transitions attempted",
		},
		[]string{"plugin", "from", "to", "outcome"},
	)

	// ParserOutcomesTotal counts per-file parser results, labeled by
	// outcome (inserted, duplicate, skipped, failed).
	ParserOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpus_parser_file_outcomes_total",
			Help: "Total per-file parser outcomes",
		},
		[]string{"outcome"},
	)
)

// RecordTransition records one stage lifecycle transition attempt.
func RecordTransition(plugin, from, to string, accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	StageTransitionsTotal.WithLabelValues(plugin, from, to, outcome).Inc()
}

// RecordParserOutcome records one per-file parser outcome.
func RecordParserOutcome(outcome string) {
	ParserOutcomesTotal.WithLabelValues(outcome).Inc()
}

// SetStoreSize updates the store size gauge.
func SetStoreSize(n int) {
	StoreSize.Set(float64(n))
}
