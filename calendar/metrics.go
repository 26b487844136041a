package calendar

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report reminder activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	messageOps      *prometheus.CounterVec
	reminders       prometheus.Gauge
	refreshDuration prometheus.Histogram
	refreshFailures prometheus.Counter
	droppedEntries  prometheus.Counter
}

// NewMetrics creates Metrics and registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messageOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eitbot",
				Subsystem: "calendar",
				Name:      "message_operations_total",
				Help:      "Reminder message operations sent to Discord.",
			},
			[]string{"op", "result"},
		),
		reminders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "eitbot",
				Subsystem: "calendar",
				Name:      "reminders",
				Help:      "Number of tracked reminders.",
			},
		),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "eitbot",
				Subsystem: "calendar",
				Name:      "refresh_duration_seconds",
				Help:      "Time spent fetching and reconciling calendar entries.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		refreshFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "eitbot",
				Subsystem: "calendar",
				Name:      "refresh_failures_total",
				Help:      "Refresh cycles that could not fetch calendar entries.",
			},
		),
		droppedEntries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "eitbot",
				Subsystem: "calendar",
				Name:      "dropped_entries_total",
				Help:      "Fetched events that could not be decoded or routed.",
			},
		),
	}

	collectors := []prometheus.Collector{m.messageOps, m.reminders, m.refreshDuration, m.refreshFailures, m.droppedEntries}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) messageOp(op, result string) {
	if m == nil {
		return
	}
	m.messageOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) setReminders(n int) {
	if m == nil {
		return
	}
	m.reminders.Set(float64(n))
}

func (m *Metrics) observeRefresh(started time.Time, err error) {
	if m == nil {
		return
	}
	m.refreshDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		m.refreshFailures.Inc()
	}
}

func (m *Metrics) dropEntry() {
	if m == nil {
		return
	}
	m.droppedEntries.Inc()
}
