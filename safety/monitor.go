// Package safety decides, every control cycle, whether motion may proceed, and owns the
// operational state machine.
//
// A STOP verdict is returned when a required stream is absent or stale, when the decision vector
// is stale, when an obstacle is inside the safety distance, before setup has completed, after a
// setup failure, and while the emergency latch is set. Only a control failure sets the latch; it
// stays set until Reset is called. Every other condition clears on its own once the input
// recovers.
//
// An inference failure does not latch. The engine keeps the previous vector, so no command is
// derived from the failed cycle, and the vector going stale already forces STOP until inference
// succeeds again. A control failure may already have produced a wrong command, so it latches.
package safety

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/sensorstate"
)

// Verdict is the outcome of a safety evaluation.
type Verdict int

// The two verdicts.
const (
	Proceed Verdict = iota
	Stop
)

func (v Verdict) String() string {
	if v == Proceed {
		return "PROCEED"
	}
	return "STOP"
}

// Reason explains a STOP verdict.
type Reason string

// Reasons reported with STOP verdicts.
const (
	ReasonSetupPending    Reason = "setup pending"
	ReasonDegraded        Reason = "setup failed"
	ReasonLatched         Reason = "emergency stop latched"
	ReasonRangeMissing    Reason = "range scan missing"
	ReasonRangeStale      Reason = "range scan stale"
	ReasonInertialMissing Reason = "inertial missing"
	ReasonInertialStale   Reason = "inertial stale"
	ReasonPoseMissing     Reason = "pose missing"
	ReasonPoseStale       Reason = "pose stale"
	ReasonDecisionStale   Reason = "decision stale"
	ReasonObstacle        Reason = "obstacle inside safety distance"
)

// Limits are the freshness thresholds and the obstacle distance.
type Limits struct {
	MaxRangeAge    time.Duration
	MaxInertialAge time.Duration
	MaxOdometryAge time.Duration
	SafetyDistance float64
}

// Inputs is everything a verdict is computed from.
type Inputs struct {
	Sensors       sensorstate.Snapshot
	DecisionStale bool
}

// Assessment is a verdict together with the state it was evaluated in.
type Assessment struct {
	Verdict Verdict
	Reasons []Reason
	State   OperationalState
}

// Summary joins the reasons for logging.
func (a Assessment) Summary() string {
	parts := make([]string, 0, len(a.Reasons))
	for _, r := range a.Reasons {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ", ")
}

// Monitor evaluates verdicts and applies state transitions.
type Monitor struct {
	limits Limits
	logger logging.Logger
	st     stateHolder
}

// NewMonitor returns a Monitor in INITIALIZING.
func NewMonitor(limits Limits, logger logging.Logger) *Monitor {
	return &Monitor{limits: limits, logger: logger}
}

// State returns the current operational state.
func (m *Monitor) State() OperationalState {
	return m.st.get()
}

// Latched reports whether the emergency latch is set, and the failure that set it.
func (m *Monitor) Latched() (bool, error) {
	m.st.mu.RLock()
	defer m.st.mu.RUnlock()
	return m.st.latched, m.st.latchErr
}

// Verdict evaluates the inputs against the current state. It does not change the state.
func (m *Monitor) Verdict(in Inputs) Assessment {
	m.st.mu.RLock()
	state, setup, latched := m.st.state, m.st.setup, m.st.latched
	m.st.mu.RUnlock()

	a := Assessment{State: state}
	switch {
	case state == Degraded:
		a.Reasons = append(a.Reasons, ReasonDegraded)
	case latched:
		a.Reasons = append(a.Reasons, ReasonLatched)
	case !setup:
		a.Reasons = append(a.Reasons, ReasonSetupPending)
	}
	a.Reasons = append(a.Reasons, m.freshness(in)...)
	if len(a.Reasons) > 0 {
		a.Verdict = Stop
	}
	return a
}

func (m *Monitor) freshness(in Inputs) []Reason {
	var reasons []Reason
	s := in.Sensors
	switch {
	case !s.Range.Present:
		reasons = append(reasons, ReasonRangeMissing)
	case s.Range.Stale(m.limits.MaxRangeAge):
		reasons = append(reasons, ReasonRangeStale)
	default:
		if _, near := m.Obstacle(s.Range.Value); near {
			reasons = append(reasons, ReasonObstacle)
		}
	}
	switch {
	case !s.Inertial.Present:
		reasons = append(reasons, ReasonInertialMissing)
	case s.Inertial.Stale(m.limits.MaxInertialAge):
		reasons = append(reasons, ReasonInertialStale)
	}
	switch {
	case !s.Odometry.Present:
		reasons = append(reasons, ReasonPoseMissing)
	case s.Odometry.Stale(m.limits.MaxOdometryAge):
		reasons = append(reasons, ReasonPoseStale)
	}
	if in.DecisionStale {
		reasons = append(reasons, ReasonDecisionStale)
	}
	return reasons
}

// Obstacle returns the closest valid range of scan and whether it is inside the safety
// distance. A scan without valid ranges has no obstacle.
func (m *Monitor) Obstacle(scan sensorstate.LaserScan) (float64, bool) {
	closest, ok := scan.ClosestRange()
	return closest, ok && closest < m.limits.SafetyDistance
}

// Initialized records the outcome of component setup. A setup error moves the node to DEGRADED
// for the rest of the run. On success the node stays INITIALIZING until the first PROCEED.
func (m *Monitor) Initialized(setupErr error) Transition {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.state == Degraded {
		return Transition{From: Degraded, To: Degraded}
	}
	m.st.setup = true
	if setupErr != nil {
		t := m.st.set(Degraded)
		m.logger.Errorw("setup failed, only stop commands will be issued", "error", setupErr)
		return t
	}
	return Transition{From: m.st.state, To: m.st.state}
}

// Engage applies a STOP verdict. An OPERATIONAL node moves to EMERGENCY_STOP. INITIALIZING and
// DEGRADED are left as they are.
func (m *Monitor) Engage(a Assessment) Transition {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.state != Operational {
		return Transition{From: m.st.state, To: m.st.state}
	}
	t := m.st.set(EmergencyStop)
	m.logger.Warnw("emergency stop", "reasons", a.Summary())
	return t
}

// Clear applies a PROCEED verdict, returning a non-latched node to OPERATIONAL.
func (m *Monitor) Clear() Transition {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.state == Degraded || m.st.latched || !m.st.setup {
		return Transition{From: m.st.state, To: m.st.state}
	}
	t := m.st.set(Operational)
	if t.Changed() {
		m.logger.Infow("operational", "from", t.From.String())
	}
	return t
}

// Latch sets the sticky emergency stop after a control failure. Only Reset clears it.
func (m *Monitor) Latch(cause error) Transition {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.state == Degraded {
		return Transition{From: Degraded, To: Degraded}
	}
	if !m.st.latched {
		m.logger.Errorw("emergency stop latched", "error", cause)
	}
	m.st.latched = true
	m.st.latchErr = cause
	return m.st.set(EmergencyStop)
}

// Reset clears the emergency latch. The node returns to OPERATIONAL on the next PROCEED verdict.
func (m *Monitor) Reset() error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.state == Degraded {
		return errors.New("cannot reset a degraded node")
	}
	if m.st.latched {
		m.logger.Info("emergency stop latch reset")
	}
	m.st.latched = false
	m.st.latchErr = nil
	return nil
}
