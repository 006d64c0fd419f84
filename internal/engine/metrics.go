package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queriesTotal counts engine operations.
	// Labels: op (search, count, aggregate), entity, outcome (ok, empty_ids,
	// invalid_predicate, store_error, plan_error)
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffquery",
		Subsystem: "engine",
		Name:      "operations_total",
		Help:      "Engine operations by outcome",
	}, []string{"op", "entity", "outcome"})

	// queryDuration measures operation latency, store round trips included.
	// Labels: op, entity
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ffquery",
		Subsystem: "engine",
		Name:      "operation_duration_seconds",
		Help:      "Engine operation latency in seconds",
		Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"op", "entity"})

	// rowsReturned tracks result sizes: entities for searches, groups for
	// aggregates.
	// Labels: op, entity
	rowsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ffquery",
		Subsystem: "engine",
		Name:      "rows_returned",
		Help:      "Rows returned per engine operation",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"op", "entity"})

	// eagerLoads counts how eager relations were loaded.
	// Labels: strategy (joined, secondary)
	eagerLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffquery",
		Subsystem: "engine",
		Name:      "eager_loads_total",
		Help:      "Searches with eager fields by load strategy",
	}, []string{"strategy"})
)

// Operation outcomes.
const (
	outcomeOK               = "ok"
	outcomeEmptyIDs         = "empty_ids"
	outcomeInvalidPredicate = "invalid_predicate"
	outcomeStoreError       = "store_error"
	outcomePlanError        = "plan_error"
)

func observe(op, entity, outcome string, start time.Time, rows int) {
	queriesTotal.WithLabelValues(op, entity, outcome).Inc()
	queryDuration.WithLabelValues(op, entity).Observe(time.Since(start).Seconds())
	if outcome == outcomeOK || outcome == outcomeEmptyIDs {
		rowsReturned.WithLabelValues(op, entity).Observe(float64(rows))
	}
}
