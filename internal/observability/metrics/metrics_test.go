package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCallMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCallMetrics(reg)

	m.ObserveScheduled("completed")
	m.ObserveScheduled("completed")
	m.ObserveScheduled("failed")
	m.ObserveSwept(3)

	if got := testutil.ToFloat64(m.scheduledTotal.WithLabelValues("completed")); got != 2 {
		t.Errorf("expected 2 completed, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweptTotal); got != 3 {
		t.Errorf("expected 3 swept, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var cm *CallMetrics
	var sm *SMSMetrics
	var am *AnalysisMetrics

	cm.ObserveScheduled("completed")
	cm.ObserveSwept(1)
	sm.ObserveOutbound("sent")
	sm.ObserveFollowUp("no_answer")
	am.ObserveSegmented("existing_labels")
	am.ObserveStage("sentiment", "ok")
	am.ObserveStageLatency("sentiment", 0.1)
}

func TestAnalysisMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAnalysisMetrics(reg)

	m.ObserveSegmented("heuristic_analysis")
	m.ObserveStage("sentiment", "ok")
	m.ObserveStageLatency("sentiment", 0.25)

	if got := testutil.ToFloat64(m.segmentedTotal.WithLabelValues("heuristic_analysis")); got != 1 {
		t.Errorf("expected 1 segmentation, got %v", got)
	}
}
