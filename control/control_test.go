package control

import (
	"math"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestPIDConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  PIDConfig
		err  string
	}{
		{"ok", PIDConfig{Kp: 1, OutputLimit: 1}, ""},
		{"no gains", PIDConfig{OutputLimit: 1}, "at least one"},
		{"no output limit", PIDConfig{Kp: 1}, "limits must be positive"},
		{"negative integral limit", PIDConfig{Ki: 1, IntegralLimit: -1, OutputLimit: 1}, "limits must be positive"},
		{"nan gain", PIDConfig{Kp: math.NaN(), OutputLimit: 1}, "finite"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPID(tc.cfg)
			if tc.err == "" {
				test.That(t, err, test.ShouldBeNil)
				return
			}
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestPIDProportional(t *testing.T) {
	p, err := NewPID(PIDConfig{Kp: 2, OutputLimit: 10})
	test.That(t, err, test.ShouldBeNil)

	y, ok := p.Next(1.5, 100*time.Millisecond)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, y, test.ShouldEqual, 3.0)

	y, ok = p.Next(-20, 100*time.Millisecond)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, y, test.ShouldEqual, -10.0)
	test.That(t, p.Output(), test.ShouldEqual, -10.0)
}

func TestPIDIntegralSaturates(t *testing.T) {
	p, err := NewPID(PIDConfig{Ki: 1, IntegralLimit: 0.5, OutputLimit: 10})
	test.That(t, err, test.ShouldBeNil)

	var y float64
	for i := 0; i < 20; i++ {
		y, _ = p.Next(1, 100*time.Millisecond)
	}
	test.That(t, y, test.ShouldAlmostEqual, 0.5)

	// unwinding starts immediately once the error changes sign
	y, _ = p.Next(-1, 100*time.Millisecond)
	test.That(t, y, test.ShouldAlmostEqual, 0.4)
}

func TestPIDDerivative(t *testing.T) {
	p, err := NewPID(PIDConfig{Kd: 1, OutputLimit: 100})
	test.That(t, err, test.ShouldBeNil)

	y, _ := p.Next(5, time.Second)
	test.That(t, y, test.ShouldEqual, 0.0)
	y, _ = p.Next(7, time.Second)
	test.That(t, y, test.ShouldEqual, 2.0)

	p.Reset()
	y, _ = p.Next(1, time.Second)
	test.That(t, y, test.ShouldEqual, 0.0)
}

func TestPIDRejectsBadStep(t *testing.T) {
	p, err := NewPID(PIDConfig{Kp: 1, OutputLimit: 10})
	test.That(t, err, test.ShouldBeNil)
	_, ok := p.Next(2, time.Second)
	test.That(t, ok, test.ShouldBeTrue)

	y, ok := p.Next(3, 0)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, y, test.ShouldEqual, 2.0)

	y, ok = p.Next(math.Inf(1), time.Second)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, y, test.ShouldEqual, 2.0)
}

func TestRateLimiter(t *testing.T) {
	r := NewRateLimiter(1)
	dt := 100 * time.Millisecond

	test.That(t, r.Next(0.5, dt), test.ShouldAlmostEqual, 0.1)
	test.That(t, r.Next(0.5, dt), test.ShouldAlmostEqual, 0.2)
	test.That(t, r.Next(0.15, dt), test.ShouldAlmostEqual, 0.15)
	test.That(t, r.Next(-1, dt), test.ShouldAlmostEqual, 0.05)
	test.That(t, r.Last(), test.ShouldAlmostEqual, 0.05)

	r.Reset()
	test.That(t, r.Last(), test.ShouldEqual, 0.0)
	test.That(t, r.Next(-1, dt), test.ShouldAlmostEqual, -0.1)

	unlimited := NewRateLimiter(0)
	test.That(t, unlimited.Next(3, dt), test.ShouldEqual, 3.0)
}
