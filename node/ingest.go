package node

import (
	"context"
	"time"

	"github.com/eosrobotics/eos/sensorstate"
)

// OnRangeScan ingests a range scan stamped at stamp.
func (n *Node) OnRangeScan(scan sensorstate.LaserScan, stamp time.Time) error {
	return n.update(context.Background(), sensorstate.StreamRange, scan, stamp)
}

// OnInertial ingests an IMU reading stamped at stamp.
func (n *Node) OnInertial(reading sensorstate.InertialReading, stamp time.Time) error {
	return n.update(context.Background(), sensorstate.StreamInertial, reading, stamp)
}

// OnOdometry ingests an odometry pose stamped at stamp.
func (n *Node) OnOdometry(pose sensorstate.PoseEstimate, stamp time.Time) error {
	return n.update(context.Background(), sensorstate.StreamOdometry, pose, stamp)
}

// OnGoal ingests a goal and echoes it on the goal channel once accepted.
func (n *Node) OnGoal(ctx context.Context, goal sensorstate.Goal, stamp time.Time) error {
	return n.update(ctx, sensorstate.StreamGoal, goal, stamp)
}

// Ingest stamps payload with the node's clock and ingests it on stream.
func (n *Node) Ingest(ctx context.Context, stream sensorstate.StreamID, payload sensorstate.Payload) error {
	return n.update(ctx, stream, payload, n.clock.Now())
}

func (n *Node) update(ctx context.Context, stream sensorstate.StreamID, payload sensorstate.Payload, stamp time.Time) error {
	if err := n.sensors.Update(stream, payload, stamp); err != nil {
		rejected := n.rejected.Inc()
		if n.dropWarnings.Allow() {
			n.logger.CWarnw(ctx, "dropping sensor sample", "stream", stream.String(), "error", err, "rejected", rejected)
		} else {
			n.logger.CDebugw(ctx, "dropping sensor sample", "stream", stream.String(), "error", err, "rejected", rejected)
		}
		return err
	}
	n.accepted.Inc()
	n.logger.CDebugw(ctx, "sensor sample", "stream", stream.String())

	if scan, ok := payload.(sensorstate.LaserScan); ok {
		if closest, near := n.monitor.Obstacle(scan); near {
			n.logger.CDebugw(ctx, "obstacle inside safety distance", "closest", closest, "safety_distance", n.cfg.SafetyDistance)
		}
	}
	if goal, ok := payload.(sensorstate.Goal); ok {
		n.logger.CInfow(ctx, "new goal", "x", goal.Position.X, "y", goal.Position.Y)
		if err := n.sink.PublishGoal(ctx, goal); err != nil {
			n.logger.CWarnw(ctx, "failed to echo goal", "error", err)
		}
	}
	return nil
}
