// Package metrics defines all custom Prometheus metrics for the fleet
// guardian. It is the single source of truth for metric names, labels, and
// help strings. Metrics register themselves with the default registry at
// package load; the serve-mode router exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "guardian"

// ── Patrol cycle metrics ─────────────────────────────────────────────────────

// EventsFetchedTotal counts transaction events retrieved from the store.
var EventsFetchedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_fetched_total",
		Help:      "Total number of transaction events fetched from the store.",
	},
)

// MalformedRecordsTotal counts store records excluded because they could not
// be decoded.
var MalformedRecordsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "malformed_records_total",
		Help:      "Total number of store records excluded as malformed.",
	},
)

// DriversEvaluatedTotal counts driver windows that cleared the
// minimum-activity floor and were evaluated by the rule engine.
var DriversEvaluatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drivers_evaluated_total",
		Help:      "Total number of driver windows evaluated by the rule engine.",
	},
)

// CycleDuration measures how long a full patrol cycle takes.
var CycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a patrol cycle from fetch to final emit.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Alert metrics ────────────────────────────────────────────────────────────

// AlertsEmittedTotal counts alerts published to the sink.
// Label:
//   - rule: the rule tag that produced the alert (e.g. "gps-stationary-high-revenue")
var AlertsEmittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_emitted_total",
		Help:      "Total number of fraud alerts published, by rule.",
	},
	[]string{"rule"},
)

// AlertPublishErrorsTotal counts alert writes the sink rejected.
var AlertPublishErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_publish_errors_total",
		Help:      "Total number of alert publishes rejected by the sink.",
	},
)

// AlertDedupTotal counts dedup ledger decisions.
// Label:
//   - result: "hit" (already seen, suppressed) or "miss" (new, published)
var AlertDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_dedup_total",
		Help:      "Total number of dedup ledger checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)
