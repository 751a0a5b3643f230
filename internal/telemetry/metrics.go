// Package telemetry wires structured logging and Prometheus metrics for
// the core, the same pairing the rest of the retrieval pack uses: package
// log/slog as the sole logger, package-level Prometheus collectors
// registered once at import time.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whitelight_orders_attempted_total",
		Help: "Orders the executor attempted to submit.",
	})
	OrdersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whitelight_orders_placed_total",
		Help: "Orders successfully submitted to a broker.",
	})
	OrdersFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whitelight_orders_failed_total",
		Help: "Orders whose submission or fill polling ended in an error.",
	})
	SessionsRun = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whitelight_sessions_run_total",
		Help: "Completed run/sync sessions, regardless of outcome.",
	})
	DeadlineMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whitelight_deadline_misses_total",
		Help: "Orders still non-terminal when the session deadline passed.",
	})
	BrokerFailovers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whitelight_broker_failovers_total",
		Help: "Times the broker failover client switched from primary to secondary broker.",
	})
	CompositeScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "whitelight_composite_score",
		Help: "Most recent session's composite signal score (telemetry only, not used for allocation).",
	})
)

func init() {
	prometheus.MustRegister(
		OrdersAttempted, OrdersPlaced, OrdersFailed,
		SessionsRun, DeadlineMisses, BrokerFailovers, CompositeScore,
	)
}
