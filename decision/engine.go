// Package decision runs the periodic inference step that turns sensor snapshots into decision
// vectors.
//
// The Engine keeps exactly one vector: the result of the most recent successful inference. A
// skipped or failed cycle leaves it untouched and counts as a missed decision. Consumers decide
// whether to use it through Stale.
package decision

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/sensorstate"
)

var (
	// ErrInference is returned when the inference collaborator fails.
	ErrInference = errors.New("inference failed")
	// ErrMissingInput is returned when a cycle is skipped for lack of range or inertial data.
	ErrMissingInput = errors.New("range or inertial data missing")
)

// Inferrer turns an Input into decision scores.
type Inferrer interface {
	Infer(ctx context.Context, in Input) ([]float64, error)
}

// InferrerFunc adapts a function to an Inferrer.
type InferrerFunc func(ctx context.Context, in Input) ([]float64, error)

// Infer calls f.
func (f InferrerFunc) Infer(ctx context.Context, in Input) ([]float64, error) {
	return f(ctx, in)
}

// Vector is the output of one successful inference.
type Vector struct {
	Scores []float64
	// Stamp is when the snapshot the vector was computed from was taken.
	Stamp time.Time
	// Generation counts successful inferences, starting at 1. Zero means none has happened yet.
	Generation uint64
}

// Status is the engine's view of its latest vector at read time.
type Status struct {
	Vector
	Missed int
	Age    time.Duration
	Stale  bool
}

// Engine runs inference cycles.
type Engine struct {
	sensors   *sensorstate.State
	inferrer  Inferrer
	clock     clock.Clock
	period    time.Duration
	maxMissed int
	logger    logging.Logger

	mu     sync.RWMutex
	latest Vector
	missed int
}

// NewEngine returns an Engine reading from sensors. inferrer may be nil until Use is called, in
// which case every cycle is missed. A vector is stale once more than maxMissed
// cycles in a row were missed, or once it is older than maxMissed+1 periods.
func NewEngine(
	sensors *sensorstate.State,
	inferrer Inferrer,
	period time.Duration,
	maxMissed int,
	clk clock.Clock,
	logger logging.Logger,
) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		sensors:   sensors,
		inferrer:  inferrer,
		clock:     clk,
		period:    period,
		maxMissed: maxMissed,
		logger:    logger,
	}
}

// Cycle runs one decision cycle. Errors are returned for reporting only; the previous vector is
// kept on every failure path.
func (e *Engine) Cycle(ctx context.Context) error {
	in, ok := BuildInput(e.sensors.Snapshot())
	if !ok {
		e.miss()
		e.logger.Debug("skipping inference, range or inertial data missing")
		return ErrMissingInput
	}

	e.mu.RLock()
	inferrer := e.inferrer
	e.mu.RUnlock()
	if inferrer == nil {
		e.miss()
		return errors.Wrap(ErrInference, "no inferrer configured")
	}

	// no lock is held while the collaborator runs
	scores, err := inferrer.Infer(ctx, in)
	if err == nil && len(scores) == 0 {
		err = errors.New("empty decision vector")
	}
	if err != nil {
		missed := e.miss()
		err = errors.Wrap(ErrInference, err.Error())
		e.logger.CWarnw(ctx, "inference failed, keeping previous decision", "error", err, "missed", missed)
		return err
	}

	e.mu.Lock()
	e.latest = Vector{
		Scores:     slices.Clone(scores),
		Stamp:      in.Taken,
		Generation: e.latest.Generation + 1,
	}
	e.missed = 0
	gen := e.latest.Generation
	e.mu.Unlock()
	e.logger.CDebugw(ctx, "decision updated", "generation", gen, "scores", scores)
	return nil
}

// Use replaces the inference collaborator. It is safe to call while cycles are running.
func (e *Engine) Use(inferrer Inferrer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inferrer = inferrer
}

func (e *Engine) miss() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.missed++
	return e.missed
}

// Latest returns a copy of the current vector and its staleness.
func (e *Engine) Latest() Status {
	st := e.status()
	st.Scores = slices.Clone(st.Scores)
	return st
}

// Stale reports whether the current vector is unusable, without copying it.
func (e *Engine) Stale() bool {
	return e.status().Stale
}

func (e *Engine) status() Status {
	now := e.clock.Now()
	e.mu.RLock()
	st := Status{Vector: e.latest, Missed: e.missed}
	e.mu.RUnlock()

	if st.Generation == 0 {
		st.Stale = true
		return st
	}
	st.Age = now.Sub(st.Stamp)
	st.Stale = st.Missed > e.maxMissed || st.Age > time.Duration(e.maxMissed+1)*e.period
	return st
}
