// Package metrics defines and registers all custom Prometheus metrics
// for the portal API. It is the single source of truth for metric
// names, labels, and help strings; metrics register with the default
// registry at import time via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Payment metrics ───────────────────────────────────────────────────────────

// IntentsCreatedTotal counts payment intents created.
// Label:
//   - type: "EVENT" or "WORKSHOP"
var IntentsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_intents_created_total",
		Help:      "Total number of payment intents created, by fee type.",
	},
	[]string{"type"},
)

// CallbacksProcessedTotal counts reconciliation attempts by outcome.
// Label:
//   - outcome: "success", "failed", "replayed", "not_found",
//     "unknown_code", "decrypt_failed", "mock"
var CallbacksProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_callbacks_processed_total",
		Help:      "Total number of gateway callbacks processed, by outcome.",
	},
	[]string{"outcome"},
)

// CallbackDedupTotal counts fast-path replay checks.
// Label:
//   - result: "hit" (duplicate callback) or "miss"
var CallbackDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_callback_dedup_total",
		Help:      "Total number of callback dedup checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// GatewayRequestDuration measures the blocking gateway round trips.
// Label:
//   - operation: "encrypt" or "decrypt"
var GatewayRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Duration of PayApp encrypt/decrypt HTTP calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// GateRejectionsTotal counts requests the access gate turned away.
// Label:
//   - reason: "no_token", "invalid_token", "registration_incomplete"
var GateRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_rejections_total",
		Help:      "Total number of requests rejected by the access gate.",
	},
	[]string{"reason"},
)
