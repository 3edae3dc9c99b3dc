package relayserver

import (
	"math"
	"os"
	"time"
)

// Pulse is the heartbeat payload returned by /heartbeat and recorded in the
// custody ledger.
type Pulse struct {
	Status        string  `json:"status"`
	Timestamp     string  `json:"timestamp"`
	Hostname      string  `json:"hostname"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func newPulse(started, now time.Time) Pulse {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	uptime := now.Sub(started).Seconds()
	return Pulse{
		Status:        "alive",
		Timestamp:     now.UTC().Format(time.RFC3339Nano),
		Hostname:      host,
		UptimeSeconds: math.Round(uptime*1000) / 1000,
	}
}
