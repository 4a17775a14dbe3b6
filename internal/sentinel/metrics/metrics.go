package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
)

// Metrics holds the Prometheus collectors for a session.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	EventsIngested  prometheus.Counter
	EventsRejected  prometheus.Counter
	EventsDuplicate prometheus.Counter
	EventsEvicted   prometheus.Counter
	Actions         *prometheus.CounterVec
	Reconnects      prometheus.Counter
	StoreSize       prometheus.Gauge
	Endpoints       *prometheus.GaugeVec
}

// Action outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeDenied  = "denied"
	OutcomeFailed  = "failed"
)

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		EventsIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_events_ingested_total",
			Help: "Telemetry events classified and inserted into the log",
		}),
		EventsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_events_rejected_total",
			Help: "Telemetry records rejected during decoding or classification",
		}),
		EventsDuplicate: f.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_events_duplicate_total",
			Help: "Telemetry records dropped because their event id was already seen",
		}),
		EventsEvicted: f.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_events_evicted_total",
			Help: "Events dropped from the log by capacity truncation",
		}),
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_actions_total",
			Help: "Admin actions by action name and outcome",
		}, []string{"action", "outcome"}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_reconnects_total",
			Help: "Offline endpoints brought back online",
		}),
		StoreSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_store_events",
			Help: "Events currently held in the log",
		}),
		Endpoints: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_endpoints",
			Help: "Endpoints by status",
		}, []string{"status"}),
	}
}

func (m *Metrics) Ingested(n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsIngested.Add(float64(n))
}

func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.EventsRejected.Inc()
}

func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.EventsDuplicate.Inc()
}

func (m *Metrics) Evicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsEvicted.Add(float64(n))
}

func (m *Metrics) Action(name, outcome string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// Observe records the size of the log and endpoint counts of a published view.
func (m *Metrics) Observe(storeLen int, endpoints endpoint.Set) {
	if m == nil {
		return
	}
	m.StoreSize.Set(float64(storeLen))
	counts := endpoints.CountByStatus()
	for _, st := range endpoint.Statuses {
		m.Endpoints.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}
