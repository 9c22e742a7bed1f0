package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the wallet's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	DeviceExchanges *prometheus.CounterVec
	SigningRuns     *prometheus.CounterVec
	Discovered      *prometheus.GaugeVec
	ListenerEvents  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devicewallet_backend_requests_total",
			Help: "Chain backend requests by coin, operation and outcome",
		}, []string{"coin", "op", "outcome"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devicewallet_backend_request_duration_seconds",
			Help:    "Chain backend request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"coin", "op"}),
		DeviceExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devicewallet_device_exchanges_total",
			Help: "Device request/response exchanges by message and outcome",
		}, []string{"message", "outcome"}),
		SigningRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devicewallet_signing_runs_total",
			Help: "Signing state machine runs by coin and terminal state",
		}, []string{"coin", "state"}),
		Discovered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "devicewallet_discovered_accounts",
			Help: "Accounts found by the last discovery run",
		}, []string{"coin"}),
		ListenerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devicewallet_listener_events_total",
			Help: "Transactions reported by the history listener by network",
		}, []string{"network"}),
	}
	if reg != nil {
		reg.MustRegister(m.BackendRequests, m.BackendLatency, m.DeviceExchanges, m.SigningRuns, m.Discovered, m.ListenerEvents)
	}
	return m
}

// ObserveBackend records one backend call.
func (m *Metrics) ObserveBackend(coin, op, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(coin, op, outcome).Inc()
	m.BackendLatency.WithLabelValues(coin, op).Observe(time.Since(started).Seconds())
}

// ObserveExchange records one device exchange.
func (m *Metrics) ObserveExchange(message, outcome string) {
	if m == nil {
		return
	}
	m.DeviceExchanges.WithLabelValues(message, outcome).Inc()
}

// ObserveSigning records the terminal state of a signing run.
func (m *Metrics) ObserveSigning(coin, state string) {
	if m == nil {
		return
	}
	m.SigningRuns.WithLabelValues(coin, state).Inc()
}

// SetDiscovered records the account count of a finished discovery.
func (m *Metrics) SetDiscovered(coin string, n int) {
	if m == nil {
		return
	}
	m.Discovered.WithLabelValues(coin).Set(float64(n))
}

// ObserveEvent records one transaction reported by a listener.
func (m *Metrics) ObserveEvent(network string) {
	if m == nil {
		return
	}
	m.ListenerEvents.WithLabelValues(network).Inc()
}
