package relayserver

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "codex"

// Outcome labels for relay_requests_total.
const (
	outcomeReceived    = "received"
	outcomeInvalidJSON = "invalid_json"
	outcomeInvalid     = "invalid_envelope"
	outcomeLedgerError = "ledger_error"
)

// Metrics holds the listener's Prometheus collectors.
type Metrics struct {
	RelayRequests *prometheus.CounterVec
	Heartbeats    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RelayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "relay",
				Name:      "requests_total",
				Help:      "Relay envelopes received by outcome",
			},
			[]string{"outcome"},
		),
		Heartbeats: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "relay",
				Name:      "heartbeats_total",
				Help:      "Heartbeat pulses emitted",
			},
		),
	}
	reg.MustRegister(m.RelayRequests, m.Heartbeats)
	return m
}
