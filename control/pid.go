package control

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/eosrobotics/eos/utils"
)

// PIDConfig holds the gains and saturation limits of a PID.
type PIDConfig struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
	// IntegralLimit bounds the absolute value of the integral term. Zero disables the integral.
	IntegralLimit float64 `json:"integral_limit"`
	// OutputLimit bounds the absolute value of the output.
	OutputLimit float64 `json:"output_limit"`
}

// Validate checks that the config describes a usable controller.
func (cfg PIDConfig) Validate() error {
	if cfg.Kp == 0 && cfg.Ki == 0 && cfg.Kd == 0 {
		return errors.New("pid should have at least one of ki, kp or kd")
	}
	if !utils.IsFinite(cfg.Kp, cfg.Ki, cfg.Kd, cfg.IntegralLimit, cfg.OutputLimit) {
		return errors.New("pid gains and limits must be finite")
	}
	if cfg.IntegralLimit < 0 || cfg.OutputLimit <= 0 {
		return errors.Errorf("pid limits must be positive, got integral %v output %v", cfg.IntegralLimit, cfg.OutputLimit)
	}
	return nil
}

// PID is a discrete PID controller with a clamped integral. The integral stops accumulating in
// the direction it is saturated in.
type PID struct {
	mu    sync.Mutex
	cfg   PIDConfig
	error float64
	int   float64
	sat   int
	y     float64
	init  bool
}

// NewPID returns a PID at rest.
func NewPID(cfg PIDConfig) (*PID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PID{cfg: cfg}, nil
}

// Next computes one step from the current error and the time elapsed since the previous step.
// It returns false and the last valid output when dt is not positive.
func (p *PID) Next(err float64, dt time.Duration) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dtS := dt.Seconds()
	if dtS <= 0 || math.IsNaN(err) || math.IsInf(err, 0) {
		return p.y, false
	}
	if !p.init {
		// no derivative kick on the first step
		p.error = err
		p.init = true
	}
	if !(p.sat > 0 && err > 0) && !(p.sat < 0 && err < 0) {
		p.int += p.cfg.Ki * err * dtS
	}
	switch {
	case p.int > p.cfg.IntegralLimit:
		p.int = p.cfg.IntegralLimit
		p.sat = 1
	case p.int < -p.cfg.IntegralLimit:
		p.int = -p.cfg.IntegralLimit
		p.sat = -1
	default:
		p.sat = 0
	}
	deriv := (err - p.error) / dtS
	p.error = err
	p.y = utils.Clamp(p.cfg.Kp*err+p.int+p.cfg.Kd*deriv, p.cfg.OutputLimit)
	return p.y, true
}

// Output is the most recent valid output.
func (p *PID) Output() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.y
}

// Reset drops the accumulated state.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.error = 0
	p.int = 0
	p.sat = 0
	p.y = 0
	p.init = false
}
