// Package status publishes a human readable line describing the node's operational state.
package status

import (
	"context"

	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/safety"
)

// Status lines.
const (
	OperationalText   = "Eos OS: OPERATIONAL - Neural and navigation systems active"
	DegradedText      = "Eos OS: DEGRADED - System initialization incomplete"
	EmergencyStopText = "Eos OS: EMERGENCY_STOP - Motion halted by safety monitor"
)

// Text returns the status line for a state. A node that has not finished initializing reports
// itself degraded.
func Text(s safety.OperationalState) string {
	switch s {
	case safety.Operational:
		return OperationalText
	case safety.EmergencyStop:
		return EmergencyStopText
	case safety.Initializing, safety.Degraded:
		return DegradedText
	default:
		return DegradedText
	}
}

// StateSource exposes the operational state.
type StateSource interface {
	State() safety.OperationalState
}

// Publisher sends status lines.
type Publisher interface {
	PublishStatus(ctx context.Context, line string) error
}

// Reporter emits one status line per call.
type Reporter struct {
	source    StateSource
	publisher Publisher
	logger    logging.Logger
}

// NewReporter returns a Reporter.
func NewReporter(source StateSource, publisher Publisher, logger logging.Logger) *Reporter {
	return &Reporter{source: source, publisher: publisher, logger: logger}
}

// Report publishes the line for the current state and returns it.
func (r *Reporter) Report(ctx context.Context) string {
	line := Text(r.source.State())
	if r.publisher != nil {
		if err := r.publisher.PublishStatus(ctx, line); err != nil {
			r.logger.CWarnw(ctx, "failed to publish status", "error", err)
		}
	}
	return line
}
