// Package metrics exposes the Prometheus counters and histograms the
// reasoning loop, tool dispatcher, and event broadcast hub record: one
// struct of promauto-registered collectors built once at startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the runtime's operational counters/histograms.
type Metrics struct {
	// LoopIterations counts reasoning-loop iterations by outcome
	// (tool_call|done|suspended|refused|error).
	LoopIterations *prometheus.CounterVec

	// LoopTurnDuration measures one streamTurn call's wall time.
	LoopTurnDuration *prometheus.HistogramVec

	// ToolExecutions counts dispatcher invocations by tool name and
	// outcome (success|error|leak_blocked|policy_blocked|approval_required).
	ToolExecutions *prometheus.CounterVec

	// ToolExecutionDuration measures dispatcher.Dispatch wall time.
	ToolExecutionDuration *prometheus.HistogramVec

	// BroadcastDropped counts events dropped because a subscriber's
	// buffer was full.
	BroadcastDropped *prometheus.CounterVec

	// BroadcastSubscribers is the current subscriber count.
	BroadcastSubscribers prometheus.Gauge
}

// New creates and registers every collector with the default registry.
// Call once at process startup.
func New() *Metrics {
	return &Metrics{
		LoopIterations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_reasoning_loop_iterations_total",
				Help: "Total reasoning loop iterations by outcome",
			},
			[]string{"outcome"},
		),
		LoopTurnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_reasoning_loop_turn_duration_seconds",
				Help:    "Duration of a single provider streaming turn",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		ToolExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_executions_total",
				Help: "Total tool dispatch invocations by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_execution_duration_seconds",
				Help:    "Duration of a tool dispatch invocation",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		BroadcastDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_broadcast_events_dropped_total",
				Help: "Total broadcast events dropped for a lagging subscriber",
			},
			[]string{"kind"},
		),
		BroadcastSubscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentcore_broadcast_subscribers",
				Help: "Current number of active broadcast subscribers",
			},
		),
	}
}
