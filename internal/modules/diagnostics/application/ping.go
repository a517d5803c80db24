package application

import (
	"time"

	"github.com/sglre6355/jukebot/internal/modules/diagnostics/domain"
)

// LatencySource reports the current gateway heartbeat latency.
type LatencySource interface {
	HeartbeatLatency() time.Duration
}

// PingInteractor handles the ping use case.
type PingInteractor struct{}

// NewPingInteractor creates a new PingInteractor.
func NewPingInteractor() *PingInteractor {
	return &PingInteractor{}
}

// Execute measures the latency of source, which may be nil when no gateway
// connection is available.
func (p *PingInteractor) Execute(source LatencySource) *domain.PingResult {
	if source == nil {
		return domain.NewPingResult(0)
	}
	return domain.NewPingResult(source.HeartbeatLatency())
}
