package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle results used as the "result" label.
const (
	ResultSuccess   = "success"
	ResultEmpty     = "empty"
	ResultReadError = "read_error"
)

// Metrics holds the Prometheus collectors for the poll loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles         *prometheus.CounterVec
	messages       prometheus.Counter
	publishErrors  prometheus.Counter
	deviceConnects *prometheus.CounterVec
	budget         prometheus.Gauge
	duration       prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// Passing nil leaves them unregistered (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gw_poll_cycles_total",
			Help: "Poll cycles by result (success, empty, read_error).",
		}, []string{"result"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gw_messages_published_total",
			Help: "Readings handed to the bus.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gw_publish_errors_total",
			Help: "Readings the bus refused.",
		}),
		deviceConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gw_device_connects_total",
			Help: "Device connect attempts by result (success, error).",
		}, []string{"result"}),
		budget: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gw_failure_budget_remaining",
			Help: "Consecutive failed cycles still tolerated.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gw_poll_cycle_duration_seconds",
			Help:    "Time from snapshot request to last publish.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.cycles, m.messages, m.publishErrors, m.deviceConnects, m.budget, m.duration)
	}

	return m
}

func (m *Metrics) observeCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) messagePublished() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

func (m *Metrics) publishFailed() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

func (m *Metrics) deviceConnect(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.deviceConnects.WithLabelValues(result).Inc()
}

func (m *Metrics) setBudget(remaining int) {
	if m == nil {
		return
	}
	m.budget.Set(float64(remaining))
}
