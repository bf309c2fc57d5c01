package decision

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"

	"github.com/eosrobotics/eos/sensorstate"
)

// MaxInputRanges bounds the number of range features handed to an Inferrer.
const MaxInputRanges = 360

// Input is the bounded feature set built from one sensor snapshot.
type Input struct {
	Taken time.Time
	// Ranges are the scan readings in scan order, at most MaxInputRanges of them. Readings outside
	// the scan's window are reported as RangeMax.
	Ranges             []float64
	RangeMin, RangeMax float64
	AngularVelocity    r3.Vector
	LinearAcceleration r3.Vector
	// Pose is nil when no odometry has been received.
	Pose *sensorstate.PoseEstimate
}

// BuildInput turns a snapshot into an Input. It reports false when the range or inertial slot is
// absent.
func BuildInput(snap sensorstate.Snapshot) (Input, bool) {
	if !snap.Range.Present || !snap.Inertial.Present {
		return Input{}, false
	}
	scan := snap.Range.Value
	ranges := lo.Map(scan.Ranges, func(r float64, _ int) float64 {
		if math.IsNaN(r) || r <= scan.RangeMin || r >= scan.RangeMax {
			return scan.RangeMax
		}
		return r
	})
	if len(ranges) > MaxInputRanges {
		// each bin keeps its closest reading
		binSize := (len(ranges) + MaxInputRanges - 1) / MaxInputRanges
		ranges = lo.Map(lo.Chunk(ranges, binSize), func(bin []float64, _ int) float64 {
			return floats.Min(bin)
		})
	}
	in := Input{
		Taken:              snap.Taken,
		Ranges:             ranges,
		RangeMin:           scan.RangeMin,
		RangeMax:           scan.RangeMax,
		AngularVelocity:    snap.Inertial.Value.AngularVelocity,
		LinearAcceleration: snap.Inertial.Value.LinearAcceleration,
	}
	if snap.Odometry.Present {
		pose := snap.Odometry.Value
		in.Pose = &pose
	}
	return in, true
}
