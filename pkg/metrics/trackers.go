package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TrackerMetrics counts budget tracker activity per program.
type TrackerMetrics struct {
	mutations      *prometheus.CounterVec
	historyFailure *prometheus.CounterVec
	reconciled     *prometheus.CounterVec
}

// NewTrackerMetrics registers tracker counters. A nil registerer yields a no-op recorder.
func NewTrackerMetrics(reg prometheus.Registerer) *TrackerMetrics {
	if reg == nil {
		return &TrackerMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "mutations_total",
		Help:      "Committed tracker mutations.",
	}, []string{"program", "action"})
	historyFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "history_append_failures_total",
		Help:      "History entries that could not be written after a committed mutation.",
	}, []string{"program"})
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "records_created_total",
		Help:      "Zeroed tracker records created for verified scholars.",
	}, []string{"program"})
	reg.MustRegister(mutations, historyFailure, reconciled)
	return &TrackerMetrics{
		mutations:      mutations,
		historyFailure: historyFailure,
		reconciled:     reconciled,
	}
}

func (m *TrackerMetrics) IncMutation(program, action string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(program), normalizeLabel(action)).Inc()
}

func (m *TrackerMetrics) IncHistoryFailure(program string) {
	if m == nil || m.historyFailure == nil {
		return
	}
	m.historyFailure.WithLabelValues(normalizeLabel(program)).Inc()
}

func (m *TrackerMetrics) AddRecordsCreated(program string, n int) {
	if m == nil || m.reconciled == nil || n <= 0 {
		return
	}
	m.reconciled.WithLabelValues(normalizeLabel(program)).Add(float64(n))
}
