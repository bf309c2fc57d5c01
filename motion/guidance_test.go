package motion

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/eosrobotics/eos/control"
	"github.com/eosrobotics/eos/decision"
	"github.com/eosrobotics/eos/sensorstate"
)

func newTestGuidance(t *testing.T, maxAccel float64) *GuidancePolicy {
	t.Helper()
	g, err := NewGuidancePolicy(GuidanceConfig{
		MaxLinear:       0.5,
		MaxAngular:      1,
		MaxAcceleration: maxAccel,
		GoalTolerance:   0.1,
		Period:          100 * time.Millisecond,
	})
	test.That(t, err, test.ShouldBeNil)
	return g
}

func vec(scores ...float64) decision.Vector {
	return decision.Vector{Scores: scores, Generation: 1}
}

var origin = sensorstate.PoseEstimate{Orientation: sensorstate.YawQuat(0)}

func TestGuidanceConfig(t *testing.T) {
	_, err := NewGuidancePolicy(GuidanceConfig{MaxLinear: 1, MaxAngular: 1})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewGuidancePolicy(GuidanceConfig{
		MaxLinear: 1, MaxAngular: 1, Period: time.Second,
		Heading: control.PIDConfig{Kp: math.Inf(1)},
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid heading controller")
}

func TestGuidanceWithoutGoal(t *testing.T) {
	g := newTestGuidance(t, 0)
	raw, err := g.ComputeCommand(context.Background(), vec(0.8, 0.2, 0.1), origin, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Linear, test.ShouldAlmostEqual, 0.5*0.8*0.95)
	test.That(t, raw.Angular, test.ShouldAlmostEqual, -0.6)

	// caution is optional
	raw, err = g.ComputeCommand(context.Background(), vec(1, 0.5), origin, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Linear, test.ShouldAlmostEqual, 0.5)
	test.That(t, raw.Angular, test.ShouldAlmostEqual, 0.0)
}

func TestGuidanceRejectsBadVectors(t *testing.T) {
	g := newTestGuidance(t, 0)
	for _, v := range []decision.Vector{vec(), vec(1), vec(1, math.NaN()), vec(1, 0.5, math.Inf(-1))} {
		_, err := g.ComputeCommand(context.Background(), v, origin, nil)
		test.That(t, errors.Is(err, ErrControl), test.ShouldBeTrue)
	}
}

func TestGuidanceAccelerationLimit(t *testing.T) {
	g := newTestGuidance(t, 1)
	var linears []float64
	for i := 0; i < 6; i++ {
		raw, err := g.ComputeCommand(context.Background(), vec(1, 0.5), origin, nil)
		test.That(t, err, test.ShouldBeNil)
		linears = append(linears, raw.Linear)
	}
	for i, want := range []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.5} {
		test.That(t, linears[i], test.ShouldAlmostEqual, want)
	}

	g.Reset()
	raw, err := g.ComputeCommand(context.Background(), vec(1, 0.5), origin, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Linear, test.ShouldAlmostEqual, 0.1)
}

func TestGuidanceTowardGoal(t *testing.T) {
	g := newTestGuidance(t, 0)

	// goal straight ahead: full speed, no turn
	ahead := &sensorstate.Goal{Position: r3.Vector{X: 5}}
	raw, err := g.ComputeCommand(context.Background(), vec(1, 0), origin, ahead)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Linear, test.ShouldAlmostEqual, 0.5)
	test.That(t, raw.Angular, test.ShouldAlmostEqual, 0.0)

	// goal to the left: turn left, the turn preference is ignored
	g.Reset()
	left := &sensorstate.Goal{Position: r3.Vector{Y: 5}}
	raw, err = g.ComputeCommand(context.Background(), vec(1, 0), origin, left)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Angular, test.ShouldBeGreaterThan, 0)
	test.That(t, raw.Angular, test.ShouldBeLessThanOrEqualTo, 1)
	test.That(t, raw.Linear, test.ShouldAlmostEqual, 0.0)

	// goal behind: turn in place
	g.Reset()
	behind := &sensorstate.Goal{Position: r3.Vector{X: -5, Y: -0.1}}
	raw, err = g.ComputeCommand(context.Background(), vec(1, 1), origin, behind)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Linear, test.ShouldEqual, 0.0)
	test.That(t, raw.Angular, test.ShouldBeLessThan, 0)
}

func TestGuidanceNearGoal(t *testing.T) {
	g := newTestGuidance(t, 0)
	near := &sensorstate.Goal{Position: r3.Vector{X: 0.2}}
	raw, err := g.ComputeCommand(context.Background(), vec(1, 0), origin, near)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Linear, test.ShouldAlmostEqual, 0.5*0.2/0.4)

	reached := &sensorstate.Goal{Position: r3.Vector{X: 0.05}}
	raw, err = g.ComputeCommand(context.Background(), vec(1, 0), origin, reached)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw, test.ShouldResemble, RawCommand{})
}
