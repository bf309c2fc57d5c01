package motion

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/eosrobotics/eos/control"
	"github.com/eosrobotics/eos/decision"
	"github.com/eosrobotics/eos/sensorstate"
	"github.com/eosrobotics/eos/utils"
)

// goalSlowdownFactor is how many goal tolerances out from the goal the robot starts slowing down.
const goalSlowdownFactor = 4

// DefaultHeadingGains are the heading controller gains used when none are configured.
var DefaultHeadingGains = control.PIDConfig{Kp: 1.5, Ki: 0.1, Kd: 0.05, IntegralLimit: 0.5, OutputLimit: 1}

// GuidanceConfig configures a GuidancePolicy.
type GuidanceConfig struct {
	MaxLinear       float64
	MaxAngular      float64
	MaxAcceleration float64
	GoalTolerance   float64
	// Period is the control period, used as the step of the heading controller and the
	// acceleration limiter.
	Period  time.Duration
	Heading control.PIDConfig
}

// GuidancePolicy reads a decision vector as [forward bias, turn preference, caution] and turns it
// into a velocity command. With a goal the heading comes from a PID on the bearing to the goal
// instead of the turn preference.
type GuidancePolicy struct {
	cfg     GuidanceConfig
	heading *control.PID
	accel   *control.RateLimiter
}

// NewGuidancePolicy returns a policy at rest.
func NewGuidancePolicy(cfg GuidanceConfig) (*GuidancePolicy, error) {
	if cfg.Period <= 0 {
		return nil, errors.New("guidance policy needs a positive control period")
	}
	if cfg.Heading == (control.PIDConfig{}) {
		cfg.Heading = DefaultHeadingGains
	}
	cfg.Heading.OutputLimit = cfg.MaxAngular
	pid, err := control.NewPID(cfg.Heading)
	if err != nil {
		return nil, errors.Wrap(err, "invalid heading controller")
	}
	return &GuidancePolicy{
		cfg:     cfg,
		heading: pid,
		accel:   control.NewRateLimiter(cfg.MaxAcceleration),
	}, nil
}

// ComputeCommand implements Policy.
func (g *GuidancePolicy) ComputeCommand(
	ctx context.Context,
	d decision.Vector,
	pose sensorstate.PoseEstimate,
	goal *sensorstate.Goal,
) (RawCommand, error) {
	if len(d.Scores) < 2 {
		return RawCommand{}, errors.Wrapf(ErrControl, "decision vector has %d scores, need at least 2", len(d.Scores))
	}
	if !utils.IsFinite(d.Scores...) {
		return RawCommand{}, errors.Wrap(ErrControl, "decision vector is not finite")
	}
	forward, turn := d.Scores[0], d.Scores[1]
	var caution float64
	if len(d.Scores) > 2 {
		caution = d.Scores[2]
	}

	linear := g.cfg.MaxLinear * forward * (1 - 0.5*caution)
	var angular float64
	if goal == nil {
		angular = (2*turn - 1) * g.cfg.MaxAngular
	} else {
		linear, angular = g.towardGoal(linear, pose, *goal)
	}
	return RawCommand{Linear: g.accel.Next(linear, g.cfg.Period), Angular: angular}, nil
}

func (g *GuidancePolicy) towardGoal(linear float64, pose sensorstate.PoseEstimate, goal sensorstate.Goal) (float64, float64) {
	delta := goal.Position.Sub(pose.Position)
	dist := math.Hypot(delta.X, delta.Y)
	if dist <= g.cfg.GoalTolerance {
		g.heading.Reset()
		return 0, 0
	}
	bearing := utils.WrapAngle(math.Atan2(delta.Y, delta.X) - pose.Yaw())
	angular, _ := g.heading.Next(bearing, g.cfg.Period)

	// turn in place while the goal is behind
	linear *= math.Max(0, math.Cos(bearing))
	if slow := goalSlowdownFactor * g.cfg.GoalTolerance; dist < slow {
		linear *= dist / slow
	}
	return linear, angular
}

// Reset implements Resetter. The next command ramps up from rest.
func (g *GuidancePolicy) Reset() {
	g.heading.Reset()
	g.accel.Reset()
}
