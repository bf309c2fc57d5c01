package ros

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/eosrobotics/eos/sensorstate"
)

// Message is one decoded bag record, ready to be ingested.
type Message struct {
	Topic   string
	Stream  sensorstate.StreamID
	Payload sensorstate.Payload
	// Recorded is when the bag recorded the message.
	Recorded Time
}

func decode(raw map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func (v Vector3) r3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func (q Quaternion) quat() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Convert decodes a raw bag record from topic into a sensor payload.
func Convert(topic string, raw map[string]interface{}) (Message, error) {
	msg := Message{Topic: topic}
	switch topic {
	case TopicScan:
		var m LaserScanMessage
		if err := decode(raw, &m); err != nil {
			return Message{}, errors.Wrapf(err, "cannot decode %s", topic)
		}
		msg.Recorded = m.Meta
		msg.Stream = sensorstate.StreamRange
		msg.Payload = sensorstate.LaserScan{
			AngleMin:       m.Data.AngleMin,
			AngleMax:       m.Data.AngleMax,
			AngleIncrement: m.Data.AngleIncrement,
			RangeMin:       m.Data.RangeMin,
			RangeMax:       m.Data.RangeMax,
			Ranges:         m.Data.Ranges,
		}
	case TopicImu:
		var m ImuMessage
		if err := decode(raw, &m); err != nil {
			return Message{}, errors.Wrapf(err, "cannot decode %s", topic)
		}
		msg.Recorded = m.Meta
		msg.Stream = sensorstate.StreamInertial
		msg.Payload = sensorstate.InertialReading{
			Orientation:        m.Data.Orientation.quat(),
			AngularVelocity:    m.Data.AngularVelocity.r3(),
			LinearAcceleration: m.Data.LinearAcceleration.r3(),
		}
	case TopicOdometry:
		var m OdometryMessage
		if err := decode(raw, &m); err != nil {
			return Message{}, errors.Wrapf(err, "cannot decode %s", topic)
		}
		msg.Recorded = m.Meta
		msg.Stream = sensorstate.StreamOdometry
		msg.Payload = sensorstate.PoseEstimate{
			Position:        m.Data.Pose.Pose.Position.r3(),
			Orientation:     m.Data.Pose.Pose.Orientation.quat(),
			LinearVelocity:  m.Data.Twist.Twist.Linear.r3(),
			AngularVelocity: m.Data.Twist.Twist.Angular.r3(),
		}
	case TopicSetGoal:
		var m PoseStampedMessage
		if err := decode(raw, &m); err != nil {
			return Message{}, errors.Wrapf(err, "cannot decode %s", topic)
		}
		msg.Recorded = m.Meta
		msg.Stream = sensorstate.StreamGoal
		msg.Payload = sensorstate.Goal{
			Position:    m.Data.Pose.Position.r3(),
			Orientation: m.Data.Pose.Orientation.quat(),
		}
	default:
		return Message{}, errors.Errorf("unsupported topic %s", topic)
	}
	return msg, nil
}
