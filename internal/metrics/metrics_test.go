package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// New registers with the default registry, so exercising it directly in
// more than one test would panic on duplicate registration; only
// TestNewReturnsDistinctCollectors calls it, and the label-shape test
// uses an isolated registry instead.

func TestToolExecutionsLabelCombinations(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_tool_executions_total", Help: "test"},
		[]string{"tool_name", "outcome"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("echo", "success").Inc()
	counter.WithLabelValues("echo", "success").Inc()
	counter.WithLabelValues("shell", "error").Inc()

	if got := testutil.CollectAndCount(counter); got != 2 {
		t.Fatalf("expected 2 label combinations, got %d", got)
	}
}

func TestNewReturnsDistinctCollectors(t *testing.T) {
	m := New()
	if m.LoopIterations == nil || m.ToolExecutions == nil || m.BroadcastSubscribers == nil {
		t.Fatalf("expected all collectors to be constructed")
	}
	m.LoopIterations.WithLabelValues("done").Inc()
	if got := testutil.CollectAndCount(m.LoopIterations); got != 1 {
		t.Fatalf("expected 1 label combination, got %d", got)
	}
}
