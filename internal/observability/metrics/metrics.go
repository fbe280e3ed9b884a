// Package metrics registers the Prometheus collectors for the call, SMS,
// and analysis pipelines.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters for the call scheduler.
type CallMetrics struct {
	scheduledTotal *prometheus.CounterVec
	sweptTotal     prometheus.Counter
	placedTotal    *prometheus.CounterVec
	endedTotal     *prometheus.CounterVec
}

// NewCallMetrics registers call counters with the given registerer.
func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		scheduledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bolchaal",
			Subsystem: "calls",
			Name:      "scheduled_processed_total",
			Help:      "Scheduled calls processed by outcome",
		}, []string{"outcome"}),
		sweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bolchaal",
			Subsystem: "calls",
			Name:      "stuck_swept_total",
			Help:      "Stuck calling rows force-failed by the janitor",
		}),
		placedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bolchaal",
			Subsystem: "calls",
			Name:      "placed_total",
			Help:      "Outbound calls placed with the voice provider",
		}, []string{"status"}),
		endedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bolchaal",
			Subsystem: "calls",
			Name:      "ended_total",
			Help:      "End-of-call reports ingested by final status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.scheduledTotal, m.sweptTotal, m.placedTotal, m.endedTotal)
	return m
}

func (m *CallMetrics) ObserveScheduled(outcome string) {
	if m == nil {
		return
	}
	m.scheduledTotal.WithLabelValues(outcome).Inc()
}

func (m *CallMetrics) ObserveSwept(n int64) {
	if m == nil {
		return
	}
	m.sweptTotal.Add(float64(n))
}

func (m *CallMetrics) ObservePlaced(status string) {
	if m == nil {
		return
	}
	m.placedTotal.WithLabelValues(status).Inc()
}

func (m *CallMetrics) ObserveCallEnded(status string) {
	if m == nil {
		return
	}
	m.endedTotal.WithLabelValues(status).Inc()
}

// SMSMetrics exposes counters for outbound SMS.
type SMSMetrics struct {
	outboundTotal *prometheus.CounterVec
	followUpTotal *prometheus.CounterVec
}

// NewSMSMetrics registers SMS counters.
func NewSMSMetrics(reg prometheus.Registerer) *SMSMetrics {
	m := &SMSMetrics{
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bolchaal",
			Subsystem: "sms",
			Name:      "outbound_total",
			Help:      "Outbound SMS sends by status",
		}, []string{"status"}),
		followUpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bolchaal",
			Subsystem: "sms",
			Name:      "followup_total",
			Help:      "Missed-call follow-ups by call status",
		}, []string{"call_status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outboundTotal, m.followUpTotal)
	return m
}

func (m *SMSMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *SMSMetrics) ObserveFollowUp(callStatus string) {
	if m == nil {
		return
	}
	m.followUpTotal.WithLabelValues(callStatus).Inc()
}

// AnalysisMetrics exposes counters and latency for transcript processing.
type AnalysisMetrics struct {
	segmentedTotal  *prometheus.CounterVec
	pipelineTotal   *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec
}

// NewAnalysisMetrics registers analysis counters.
func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	m := &AnalysisMetrics{
		segmentedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bolchaal",
			Subsystem: "analysis",
			Name:      "segmented_total",
			Help:      "Transcripts segmented by processing method",
		}, []string{"method"}),
		pipelineTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bolchaal",
			Subsystem: "analysis",
			Name:      "pipeline_stage_total",
			Help:      "Analysis pipeline stages by result",
		}, []string{"stage", "result"}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bolchaal",
			Subsystem: "analysis",
			Name:      "pipeline_stage_seconds",
			Help:      "Latency of analysis pipeline stages",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.segmentedTotal, m.pipelineTotal, m.pipelineLatency)
	return m
}

func (m *AnalysisMetrics) ObserveSegmented(method string) {
	if m == nil {
		return
	}
	m.segmentedTotal.WithLabelValues(method).Inc()
}

func (m *AnalysisMetrics) ObserveStage(stage, result string) {
	if m == nil {
		return
	}
	m.pipelineTotal.WithLabelValues(stage, result).Inc()
}

func (m *AnalysisMetrics) ObserveStageLatency(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.pipelineLatency.WithLabelValues(stage).Observe(seconds)
}
