package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics exposes counters/histograms for sync passes.
type SyncMetrics struct {
	passesTotal  *prometheus.CounterVec
	recordsTotal *prometheus.CounterVec
	passDuration prometheus.Histogram
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		passesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalsync",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Total sync passes by aggregate status",
		}, []string{"status"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalsync",
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Total records processed by decision and outcome",
		}, []string{"decision", "outcome"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dentalsync",
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Duration of sync passes",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.passesTotal, m.recordsTotal, m.passDuration)
	return m
}

func (m *SyncMetrics) ObservePass(status string, seconds float64) {
	if m == nil {
		return
	}
	m.passesTotal.WithLabelValues(status).Inc()
	m.passDuration.Observe(seconds)
}

func (m *SyncMetrics) ObserveRecord(decision string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.recordsTotal.WithLabelValues(decision, outcome).Inc()
}

// AutomationMetrics counts rule-driven outbound messages.
type AutomationMetrics struct {
	sendsTotal *prometheus.CounterVec
	ticksTotal prometheus.Counter
}

func NewAutomationMetrics(reg prometheus.Registerer) *AutomationMetrics {
	m := &AutomationMetrics{
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalsync",
			Subsystem: "automation",
			Name:      "sends_total",
			Help:      "Total rule-driven outbound messages",
		}, []string{"trigger_type", "status"}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dentalsync",
			Subsystem: "automation",
			Name:      "ticks_total",
			Help:      "Total automation ticks evaluated",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sendsTotal, m.ticksTotal)
	return m
}

func (m *AutomationMetrics) ObserveSend(triggerType, status string) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(triggerType, status).Inc()
}

func (m *AutomationMetrics) ObserveTick() {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
}

// TriageMetrics counts inbound message classifications.
type TriageMetrics struct {
	inboundTotal *prometheus.CounterVec
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalsync",
			Subsystem: "triage",
			Name:      "inbound_total",
			Help:      "Total inbound messages by assigned urgency color",
		}, []string{"color"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal)
	return m
}

func (m *TriageMetrics) ObserveInbound(color string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(color).Inc()
}
