// Package utils contains small helpers shared by the eos packages.
package utils

import (
	"math"
	"time"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// WrapAngle wraps an angle in radians to [-pi, pi).
func WrapAngle(rad float64) float64 {
	return rad - 2*math.Pi*math.Floor((rad+math.Pi)/(2*math.Pi))
}

// Clamp limits v to [-limit, limit]. A non-positive limit clamps to zero.
func Clamp(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}

// IsFinite reports whether every value is neither NaN nor infinite.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// RateToPeriod converts a rate in Hz to the period between ticks. Non-positive rates yield zero.
func RateToPeriod(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}
