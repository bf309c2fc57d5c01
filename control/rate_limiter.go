package control

import (
	"sync"
	"time"
)

// RateLimiter bounds how fast a signal may change between two steps. It is the acceleration
// stage of a velocity profile: each step may move at most maxRate·dt away from the last output.
type RateLimiter struct {
	mu      sync.Mutex
	maxRate float64
	last    float64
}

// NewRateLimiter returns a limiter starting at rest. A non-positive maxRate disables limiting.
func NewRateLimiter(maxRate float64) *RateLimiter {
	return &RateLimiter{maxRate: maxRate}
}

// Next moves toward target by at most maxRate·dt and returns the new value.
func (r *RateLimiter) Next(target float64, dt time.Duration) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxRate <= 0 {
		r.last = target
		return target
	}
	step := r.maxRate * dt.Seconds()
	velUp := r.last + step
	velDown := r.last - step
	switch {
	case target > velUp:
		r.last = velUp
	case target < velDown:
		r.last = velDown
	default:
		r.last = target
	}
	return r.last
}

// Last is the most recent output.
func (r *RateLimiter) Last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Reset brings the limiter back to rest, so the next ramp starts from zero.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = 0
}
