package safety

import "sync"

// OperationalState is the node-wide operating mode.
type OperationalState int32

// The operational states. A node starts INITIALIZING.
const (
	Initializing OperationalState = iota
	Operational
	Degraded
	EmergencyStop
)

func (s OperationalState) String() string {
	switch s {
	case Initializing:
		return "INITIALIZING"
	case Operational:
		return "OPERATIONAL"
	case Degraded:
		return "DEGRADED"
	case EmergencyStop:
		return "EMERGENCY_STOP"
	default:
		return "UNKNOWN"
	}
}

// Transition is a change of operational state.
type Transition struct {
	From, To OperationalState
}

// Changed reports whether the transition actually moved the state.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// stateHolder guards the operational state and the emergency latch. It is its own lock so that
// status reads never wait on a control cycle.
type stateHolder struct {
	mu       sync.RWMutex
	state    OperationalState
	setup    bool
	latched  bool
	latchErr error
}

func (h *stateHolder) get() OperationalState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *stateHolder) set(to OperationalState) Transition {
	t := Transition{From: h.state, To: to}
	h.state = to
	return t
}
