package domain

import (
	"fmt"
	"time"
)

// PingResult represents the result of a ping operation.
type PingResult struct {
	Message   string
	Latency   time.Duration
	Timestamp time.Time
}

// NewPingResult creates a PingResult reporting the gateway heartbeat latency.
// A non-positive latency means no heartbeat has been acknowledged yet.
func NewPingResult(latency time.Duration) *PingResult {
	message := "Pong! Gateway latency is not measured yet."
	if latency > 0 {
		message = fmt.Sprintf("Pong! Gateway latency: %dms", latency.Milliseconds())
	}

	return &PingResult{
		Message:   message,
		Latency:   latency,
		Timestamp: time.Now(),
	}
}
