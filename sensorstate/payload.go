package sensorstate

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/num/quat"

	"github.com/eosrobotics/eos/utils"
)

// StreamID names one of the inbound sensor streams.
type StreamID int

// The streams the node subscribes to.
const (
	StreamRange StreamID = iota
	StreamInertial
	StreamOdometry
	StreamGoal
)

func (id StreamID) String() string {
	switch id {
	case StreamRange:
		return "range"
	case StreamInertial:
		return "inertial"
	case StreamOdometry:
		return "odometry"
	case StreamGoal:
		return "goal"
	default:
		return "unknown"
	}
}

// Payload is the value carried by a sensor sample.
type Payload interface {
	// Stream is the stream this payload belongs to.
	Stream() StreamID
	// Validate rejects malformed payloads.
	Validate() error
}

// LaserScan is a planar range scan.
type LaserScan struct {
	AngleMin       float64
	AngleMax       float64
	AngleIncrement float64
	RangeMin       float64
	RangeMax       float64
	Ranges         []float64
}

// Stream implements Payload.
func (LaserScan) Stream() StreamID { return StreamRange }

// Validate implements Payload. A scan must carry at least one range and a usable range window.
func (s LaserScan) Validate() error {
	if len(s.Ranges) == 0 {
		return errors.Wrap(ErrInvalidPayload, "range scan has no ranges")
	}
	if !utils.IsFinite(s.AngleMin, s.AngleMax, s.AngleIncrement, s.RangeMin, s.RangeMax) {
		return errors.Wrap(ErrInvalidPayload, "range scan geometry is not finite")
	}
	if s.RangeMin < 0 || s.RangeMax <= s.RangeMin {
		return errors.Wrapf(ErrInvalidPayload, "range scan window [%v, %v] is empty", s.RangeMin, s.RangeMax)
	}
	return nil
}

// ValidRanges returns the readings strictly inside the scan's range window. Out of window
// readings (including NaN and +Inf "no return" values) are dropped.
func (s LaserScan) ValidRanges() []float64 {
	return lo.Filter(s.Ranges, func(r float64, _ int) bool {
		return r > s.RangeMin && r < s.RangeMax
	})
}

// ClosestRange returns the smallest valid range, or false when nothing is in the window.
func (s LaserScan) ClosestRange() (float64, bool) {
	valid := s.ValidRanges()
	if len(valid) == 0 {
		return 0, false
	}
	return lo.Min(valid), true
}

// InertialReading is an IMU sample.
type InertialReading struct {
	Orientation        quat.Number
	AngularVelocity    r3.Vector
	LinearAcceleration r3.Vector
}

// Stream implements Payload.
func (InertialReading) Stream() StreamID { return StreamInertial }

// Validate implements Payload.
func (r InertialReading) Validate() error {
	if !finiteQuat(r.Orientation) || !finiteVec(r.AngularVelocity) || !finiteVec(r.LinearAcceleration) {
		return errors.Wrap(ErrInvalidPayload, "inertial reading is not finite")
	}
	return nil
}

// AccelerationMagnitude is the norm of the linear acceleration.
func (r InertialReading) AccelerationMagnitude() float64 {
	return r.LinearAcceleration.Norm()
}

// PoseEstimate is the odometry-sourced position, orientation and velocity of the robot.
type PoseEstimate struct {
	Position        r3.Vector
	Orientation     quat.Number
	LinearVelocity  r3.Vector
	AngularVelocity r3.Vector
}

// Stream implements Payload.
func (PoseEstimate) Stream() StreamID { return StreamOdometry }

// Validate implements Payload.
func (p PoseEstimate) Validate() error {
	if !finiteVec(p.Position) || !finiteQuat(p.Orientation) ||
		!finiteVec(p.LinearVelocity) || !finiteVec(p.AngularVelocity) {
		return errors.Wrap(ErrInvalidPayload, "pose estimate is not finite")
	}
	if quat.Abs(p.Orientation) == 0 {
		return errors.Wrap(ErrInvalidPayload, "pose estimate orientation is a zero quaternion")
	}
	return nil
}

// Yaw is the heading of the pose in radians.
func (p PoseEstimate) Yaw() float64 {
	return yaw(p.Orientation)
}

// Goal is a target pose.
type Goal struct {
	Position    r3.Vector
	Orientation quat.Number
}

// Stream implements Payload.
func (Goal) Stream() StreamID { return StreamGoal }

// Validate implements Payload.
func (g Goal) Validate() error {
	if !finiteVec(g.Position) || !finiteQuat(g.Orientation) {
		return errors.Wrap(ErrInvalidPayload, "goal is not finite")
	}
	return nil
}

// Yaw is the requested final heading in radians. A zero quaternion means no preference and
// yields zero.
func (g Goal) Yaw() float64 {
	return yaw(g.Orientation)
}

// yaw extracts the rotation about z from a quaternion.
func yaw(q quat.Number) float64 {
	n := quat.Abs(q)
	if n == 0 {
		return 0
	}
	q = quat.Scale(1/n, q)
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

// YawQuat builds a quaternion rotating by yaw radians about z.
func YawQuat(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

func finiteVec(v r3.Vector) bool {
	return utils.IsFinite(v.X, v.Y, v.Z)
}

func finiteQuat(q quat.Number) bool {
	return utils.IsFinite(q.Real, q.Imag, q.Jmag, q.Kmag)
}
