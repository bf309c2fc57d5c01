// Package sensorstate is the latest-value cache of every inbound sensor stream.
//
// Each stream has exactly one slot holding the most recent sample. Slots are guarded
// independently so that ingestion of one stream never waits on readers of another, and a reader
// never observes a partially written sample. No history is kept.
package sensorstate

import (
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidPayload is returned for malformed sensor input. The sample is dropped and the slot
	// is left unchanged.
	ErrInvalidPayload = errors.New("invalid sensor payload")
	// ErrOutOfOrder is returned for a sample older than the one already stored. Updates to a
	// stream are last-write-wins by timestamp and are never reordered.
	ErrOutOfOrder = errors.New("sample is older than the stored sample")
)

// Sample is one timestamped reading of a stream.
type Sample[T Payload] struct {
	Value T
	Stamp time.Time
	// Valid is false only for the zero Sample of a slot that was never populated.
	Valid bool
}

// Reading is a slot as seen by a snapshot. Absence (never populated) is distinct from present
// but old; staleness itself is decided by the caller.
type Reading[T Payload] struct {
	Sample[T]
	Present bool
	Age     time.Duration
}

// Stale reports whether the reading is absent or older than maxAge.
func (r Reading[T]) Stale(maxAge time.Duration) bool {
	return !r.Present || r.Age > maxAge
}

// Snapshot is a point-in-time copy of every slot.
type Snapshot struct {
	Taken    time.Time
	Range    Reading[LaserScan]
	Inertial Reading[InertialReading]
	Odometry Reading[PoseEstimate]
	Goal     Reading[Goal]
}

type slot[T Payload] struct {
	mu     sync.RWMutex
	sample Sample[T]
}

func (s *slot[T]) store(v T, stamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sample.Valid && stamp.Before(s.sample.Stamp) {
		return errors.Wrapf(ErrOutOfOrder, "%s sample at %s, stored %s",
			v.Stream(), stamp.Format(time.RFC3339Nano), s.sample.Stamp.Format(time.RFC3339Nano))
	}
	s.sample = Sample[T]{Value: v, Stamp: stamp, Valid: true}
	return nil
}

func (s *slot[T]) read(now time.Time) Reading[T] {
	s.mu.RLock()
	sample := s.sample
	s.mu.RUnlock()

	if !sample.Valid {
		return Reading[T]{}
	}
	age := now.Sub(sample.Stamp)
	if age < 0 {
		age = 0
	}
	return Reading[T]{Sample: sample, Present: true, Age: age}
}

// State holds one slot per stream.
type State struct {
	clock clock.Clock

	scan     slot[LaserScan]
	inertial slot[InertialReading]
	odometry slot[PoseEstimate]
	goal     slot[Goal]
}

// New returns an empty State whose ages are measured with clk.
func New(clk clock.Clock) *State {
	if clk == nil {
		clk = clock.New()
	}
	return &State{clock: clk}
}

// Update validates payload and overwrites the slot of stream id with it. On error the slot is
// left untouched.
func (s *State) Update(id StreamID, payload Payload, stamp time.Time) error {
	switch v := payload.(type) {
	case LaserScan:
		if err := checkPayload(id, v); err != nil {
			return err
		}
		// the stored scan must not alias the caller's buffer
		v.Ranges = slices.Clone(v.Ranges)
		return s.scan.store(v, stamp)
	case InertialReading:
		if err := checkPayload(id, v); err != nil {
			return err
		}
		return s.inertial.store(v, stamp)
	case PoseEstimate:
		if err := checkPayload(id, v); err != nil {
			return err
		}
		return s.odometry.store(v, stamp)
	case Goal:
		if err := checkPayload(id, v); err != nil {
			return err
		}
		return s.goal.store(v, stamp)
	default:
		return errors.Wrapf(ErrInvalidPayload, "unsupported payload type %T for %s stream", payload, id)
	}
}

func checkPayload(id StreamID, p Payload) error {
	if p.Stream() != id {
		return errors.Wrapf(ErrInvalidPayload, "%s payload delivered to %s stream", p.Stream(), id)
	}
	return p.Validate()
}

// Snapshot copies every slot and ages it against the current time. The copy owns its range
// buffer; changing it leaves the stored scan alone.
func (s *State) Snapshot() Snapshot {
	now := s.clock.Now()
	scan := s.scan.read(now)
	scan.Value.Ranges = slices.Clone(scan.Value.Ranges)
	return Snapshot{
		Taken:    now,
		Range:    scan,
		Inertial: s.inertial.read(now),
		Odometry: s.odometry.read(now),
		Goal:     s.goal.read(now),
	}
}

// Pose returns only the odometry slot.
func (s *State) Pose() Reading[PoseEstimate] {
	return s.odometry.read(s.clock.Now())
}

// Goal returns only the goal slot.
func (s *State) Goal() Reading[Goal] {
	return s.goal.read(s.clock.Now())
}
