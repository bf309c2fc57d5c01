package sensorstate

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func testScan(ranges ...float64) LaserScan {
	return LaserScan{
		AngleMin:       -math.Pi / 2,
		AngleMax:       math.Pi / 2,
		AngleIncrement: math.Pi / float64(len(ranges)),
		RangeMin:       0.05,
		RangeMax:       10,
		Ranges:         ranges,
	}
}

func testPose(x, y, yaw float64) PoseEstimate {
	return PoseEstimate{Position: r3.Vector{X: x, Y: y}, Orientation: YawQuat(yaw)}
}

func TestEmptySnapshot(t *testing.T) {
	mc := clock.NewMock()
	s := New(mc)
	snap := s.Snapshot()
	test.That(t, snap.Taken, test.ShouldEqual, mc.Now())
	test.That(t, snap.Range.Present, test.ShouldBeFalse)
	test.That(t, snap.Range.Valid, test.ShouldBeFalse)
	test.That(t, snap.Inertial.Present, test.ShouldBeFalse)
	test.That(t, snap.Odometry.Present, test.ShouldBeFalse)
	test.That(t, snap.Goal.Present, test.ShouldBeFalse)
	// absent is always stale, whatever the threshold
	test.That(t, snap.Range.Stale(time.Hour), test.ShouldBeTrue)
}

func TestUpdateAndAge(t *testing.T) {
	mc := clock.NewMock()
	s := New(mc)

	stamp := mc.Now()
	test.That(t, s.Update(StreamRange, testScan(1, 2, 3), stamp), test.ShouldBeNil)
	mc.Add(150 * time.Millisecond)

	snap := s.Snapshot()
	test.That(t, snap.Range.Present, test.ShouldBeTrue)
	test.That(t, snap.Range.Valid, test.ShouldBeTrue)
	test.That(t, snap.Range.Stamp, test.ShouldEqual, stamp)
	test.That(t, snap.Range.Age, test.ShouldEqual, 150*time.Millisecond)
	test.That(t, snap.Range.Value.Ranges, test.ShouldResemble, []float64{1, 2, 3})
	test.That(t, snap.Range.Stale(200*time.Millisecond), test.ShouldBeFalse)
	test.That(t, snap.Range.Stale(100*time.Millisecond), test.ShouldBeTrue)

	// stamps from the future never produce a negative age
	test.That(t, s.Update(StreamOdometry, testPose(0, 0, 0), mc.Now().Add(time.Second)), test.ShouldBeNil)
	test.That(t, s.Pose().Age, test.ShouldEqual, time.Duration(0))
}

func TestInvalidPayloadLeavesSlot(t *testing.T) {
	mc := clock.NewMock()
	s := New(mc)
	test.That(t, s.Update(StreamRange, testScan(4), mc.Now()), test.ShouldBeNil)

	for _, tc := range []struct {
		name    string
		id      StreamID
		payload Payload
	}{
		{"empty ranges", StreamRange, testScan()},
		{"inverted window", StreamRange, LaserScan{RangeMin: 5, RangeMax: 1, Ranges: []float64{1}}},
		{"wrong stream", StreamRange, InertialReading{}},
		{"nil payload", StreamRange, nil},
		{"nan acceleration", StreamInertial, InertialReading{LinearAcceleration: r3.Vector{X: math.NaN()}}},
		{"zero orientation", StreamOdometry, PoseEstimate{}},
		{"infinite goal", StreamGoal, Goal{Position: r3.Vector{Y: math.Inf(1)}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Update(tc.id, tc.payload, mc.Now().Add(time.Millisecond))
			test.That(t, errors.Is(err, ErrInvalidPayload), test.ShouldBeTrue)
		})
	}

	snap := s.Snapshot()
	test.That(t, snap.Range.Value.Ranges, test.ShouldResemble, []float64{4})
	test.That(t, snap.Inertial.Present, test.ShouldBeFalse)
	test.That(t, snap.Odometry.Present, test.ShouldBeFalse)
	test.That(t, snap.Goal.Present, test.ShouldBeFalse)
}

func TestOutOfOrderDropped(t *testing.T) {
	mc := clock.NewMock()
	s := New(mc)
	newer := mc.Now().Add(time.Second)
	test.That(t, s.Update(StreamRange, testScan(2), newer), test.ShouldBeNil)

	err := s.Update(StreamRange, testScan(1), newer.Add(-time.Millisecond))
	test.That(t, errors.Is(err, ErrOutOfOrder), test.ShouldBeTrue)
	test.That(t, s.Snapshot().Range.Value.Ranges, test.ShouldResemble, []float64{2})

	// equal stamps are accepted, last write wins
	test.That(t, s.Update(StreamRange, testScan(3), newer), test.ShouldBeNil)
	test.That(t, s.Snapshot().Range.Value.Ranges, test.ShouldResemble, []float64{3})
}

func TestStoredScanDoesNotAlias(t *testing.T) {
	mc := clock.NewMock()
	s := New(mc)
	buf := []float64{1, 2, 3}
	test.That(t, s.Update(StreamRange, testScan(buf...), mc.Now()), test.ShouldBeNil)
	buf[0] = 99
	test.That(t, s.Snapshot().Range.Value.Ranges[0], test.ShouldEqual, 1.0)
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	mc := clock.NewMock()
	s := New(mc)
	test.That(t, s.Update(StreamRange, testScan(1, 2, 3), mc.Now()), test.ShouldBeNil)

	snap := s.Snapshot()
	snap.Range.Value.Ranges[0] = 0.01
	test.That(t, s.Snapshot().Range.Value.Ranges, test.ShouldResemble, []float64{1, 2, 3})
	closest, ok := s.Snapshot().Range.Value.ClosestRange()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, closest, test.ShouldEqual, 1.0)
}

// Whatever the interleaving across streams, the snapshot reflects the last update of each one.
func TestSnapshotReflectsLastUpdatePerStream(t *testing.T) {
	type update struct {
		id      StreamID
		payload Payload
	}
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		mc := clock.NewMock()
		s := New(mc)

		perStream := map[StreamID][]update{}
		for i := 0; i < 5; i++ {
			v := float64(trial*10 + i + 1)
			perStream[StreamRange] = append(perStream[StreamRange], update{StreamRange, testScan(v)})
			perStream[StreamInertial] = append(perStream[StreamInertial],
				update{StreamInertial, InertialReading{LinearAcceleration: r3.Vector{X: v}}})
			perStream[StreamOdometry] = append(perStream[StreamOdometry], update{StreamOdometry, testPose(v, 0, 0)})
			perStream[StreamGoal] = append(perStream[StreamGoal], update{StreamGoal, Goal{Position: r3.Vector{X: v}}})
		}

		// interleave streams randomly while keeping each stream's own order
		cursor := map[StreamID]int{}
		remaining := 20
		for remaining > 0 {
			id := StreamID(rng.Intn(4))
			if cursor[id] == len(perStream[id]) {
				continue
			}
			u := perStream[id][cursor[id]]
			cursor[id]++
			remaining--
			mc.Add(time.Millisecond)
			test.That(t, s.Update(u.id, u.payload, mc.Now()), test.ShouldBeNil)
		}

		last := float64(trial*10 + 5)
		snap := s.Snapshot()
		test.That(t, snap.Range.Value.Ranges, test.ShouldResemble, []float64{last})
		test.That(t, snap.Inertial.Value.LinearAcceleration.X, test.ShouldEqual, last)
		test.That(t, snap.Odometry.Value.Position.X, test.ShouldEqual, last)
		test.That(t, snap.Goal.Value.Position.X, test.ShouldEqual, last)
	}
}

func TestConcurrentUpdatesAndSnapshots(t *testing.T) {
	s := New(clock.New())
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= 200; i++ {
				ranges := make([]float64, i)
				for j := range ranges {
					ranges[j] = float64(i)
				}
				//nolint:errcheck
				s.Update(StreamRange, testScan(ranges...), time.Now())
			}
		}()
	}
	torn := 0
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := s.Snapshot()
			if !snap.Range.Present {
				continue
			}
			// every element of a scan was written together
			if len(snap.Range.Value.Ranges) != int(snap.Range.Value.Ranges[0]) {
				torn++
			}
		}
	}()
	wg.Wait()
	test.That(t, torn, test.ShouldEqual, 0)
}

func TestClosestRange(t *testing.T) {
	scan := testScan(0.01, math.Inf(1), math.NaN(), 3.2, 0.7, 10)
	closest, ok := scan.ClosestRange()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, closest, test.ShouldEqual, 0.7)
	test.That(t, scan.ValidRanges(), test.ShouldResemble, []float64{3.2, 0.7})

	_, ok = testScan(math.Inf(1), 0).ClosestRange()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestYaw(t *testing.T) {
	for _, angle := range []float64{0, 0.3, -1.2, math.Pi / 2, 3} {
		test.That(t, testPose(0, 0, angle).Yaw(), test.ShouldAlmostEqual, angle)
	}
	// unnormalized quaternions still yield the heading
	q := quat.Scale(3, YawQuat(0.5))
	test.That(t, PoseEstimate{Orientation: q}.Yaw(), test.ShouldAlmostEqual, 0.5)
	test.That(t, Goal{}.Yaw(), test.ShouldEqual, 0.0)
}

func TestStreamNames(t *testing.T) {
	test.That(t, StreamRange.String(), test.ShouldEqual, "range")
	test.That(t, StreamGoal.String(), test.ShouldEqual, "goal")
	test.That(t, StreamID(42).String(), test.ShouldEqual, "unknown")
	test.That(t, InertialReading{LinearAcceleration: r3.Vector{X: 3, Y: 4}}.AccelerationMagnitude(), test.ShouldEqual, 5.0)
}
