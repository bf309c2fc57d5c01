// Package motion turns the latest decision into a velocity command once per control cycle.
//
// Every cycle first asks the safety monitor for a verdict. A STOP verdict publishes the zero
// command without looking at the decision vector. Otherwise the control policy computes a raw
// command, which is clamped to the configured limits and published. A policy failure publishes
// the zero command and latches the emergency stop.
package motion

import (
	"context"

	"github.com/pkg/errors"

	"github.com/eosrobotics/eos/decision"
	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/safety"
	"github.com/eosrobotics/eos/sensorstate"
	"github.com/eosrobotics/eos/utils"
)

// ErrControl is returned when the control policy fails or produces an unusable command.
var ErrControl = errors.New("control policy failed")

// Policy computes a raw command from a decision and the robot's pose. goal is nil when no goal
// has been received.
type Policy interface {
	ComputeCommand(ctx context.Context, d decision.Vector, pose sensorstate.PoseEstimate, goal *sensorstate.Goal) (RawCommand, error)
}

// Resetter is implemented by policies holding state that must be dropped whenever the robot is
// stopped.
type Resetter interface {
	Reset()
}

// CommandPublisher sends commands to the base.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, cmd Command) error
}

// DecisionSource is where the controller reads the current decision from.
type DecisionSource interface {
	Latest() decision.Status
	Stale() bool
}

// Result describes one control cycle.
type Result struct {
	Command    Command
	Assessment safety.Assessment
	// Err is the control failure that forced a stop, if any.
	Err error
}

// Controller runs control cycles.
type Controller struct {
	sensors   *sensorstate.State
	decisions DecisionSource
	monitor   *safety.Monitor
	policy    Policy
	publisher CommandPublisher
	limits    Limits
	logger    logging.Logger
}

// NewController returns a Controller. policy may be nil until setup completes; the monitor never
// returns PROCEED before then.
func NewController(
	sensors *sensorstate.State,
	decisions DecisionSource,
	monitor *safety.Monitor,
	policy Policy,
	publisher CommandPublisher,
	limits Limits,
	logger logging.Logger,
) *Controller {
	return &Controller{
		sensors:   sensors,
		decisions: decisions,
		monitor:   monitor,
		policy:    policy,
		publisher: publisher,
		limits:    limits,
		logger:    logger,
	}
}

// Cycle runs one control cycle and publishes exactly one command.
func (c *Controller) Cycle(ctx context.Context) Result {
	snap := c.sensors.Snapshot()
	a := c.monitor.Verdict(safety.Inputs{Sensors: snap, DecisionStale: c.decisions.Stale()})
	if a.Verdict == safety.Stop {
		c.monitor.Engage(a)
		c.logger.CDebugw(ctx, "stopping", "state", a.State.String(), "reasons", a.Summary())
		return c.stop(ctx, Result{Assessment: a})
	}

	raw, err := c.compute(ctx, snap)
	if err != nil {
		c.monitor.Latch(err)
		return c.stop(ctx, Result{Assessment: a, Err: err})
	}
	c.monitor.Clear()

	cmd := c.limits.Clamp(raw)
	if cmd != (Command{Linear: raw.Linear, Angular: raw.Angular}) {
		c.logger.CDebugw(ctx, "command clamped", "raw_linear", raw.Linear, "raw_angular", raw.Angular, "command", cmd.String())
	}
	c.publish(ctx, cmd)
	return Result{Command: cmd, Assessment: a}
}

func (c *Controller) compute(ctx context.Context, snap sensorstate.Snapshot) (RawCommand, error) {
	if c.policy == nil {
		return RawCommand{}, errors.Wrap(ErrControl, "no control policy")
	}
	var goal *sensorstate.Goal
	if snap.Goal.Present {
		g := snap.Goal.Value
		goal = &g
	}
	raw, err := c.policy.ComputeCommand(ctx, c.decisions.Latest().Vector, snap.Odometry.Value, goal)
	if err != nil {
		if errors.Is(err, ErrControl) {
			return RawCommand{}, err
		}
		return RawCommand{}, errors.Wrap(ErrControl, err.Error())
	}
	if !utils.IsFinite(raw.Linear, raw.Angular) {
		return RawCommand{}, errors.Wrapf(ErrControl, "non-finite command %v %v", raw.Linear, raw.Angular)
	}
	return raw, nil
}

func (c *Controller) stop(ctx context.Context, r Result) Result {
	if rs, ok := c.policy.(Resetter); ok {
		rs.Reset()
	}
	r.Command = Command{}
	c.publish(ctx, r.Command)
	return r
}

func (c *Controller) publish(ctx context.Context, cmd Command) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishCommand(ctx, cmd); err != nil {
		c.logger.CWarnw(ctx, "failed to publish command", "command", cmd.String(), "error", err)
	}
}
