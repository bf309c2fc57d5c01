package ros

import "time"

// Topics the node subscribes to.
const (
	TopicScan     = "/scan"
	TopicImu      = "/imu"
	TopicOdometry = "/odom"
	TopicSetGoal  = "/eos/set_goal"
)

// Time is a ROS timestamp.
type Time struct {
	Secs  int64
	Nsecs int64
}

// Time converts to a time.Time.
func (t Time) Time() time.Time {
	return time.Unix(t.Secs, t.Nsecs)
}

// Header is std_msgs/Header.
type Header struct {
	Seq     int
	Stamp   Time
	FrameID string `json:"frame_id"`
}

// Vector3 is geometry_msgs/Vector3 and geometry_msgs/Point.
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64
	Y float64
	Z float64
	W float64
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Vector3
	Orientation Quaternion
}

// Twist is geometry_msgs/Twist.
type Twist struct {
	Linear  Vector3
	Angular Vector3
}

// LaserScanMessage is a bag record of sensor_msgs/LaserScan.
type LaserScanMessage struct {
	Meta Time
	Data struct {
		Header         Header
		AngleMin       float64 `json:"angle_min"`
		AngleMax       float64 `json:"angle_max"`
		AngleIncrement float64 `json:"angle_increment"`
		TimeIncrement  float64 `json:"time_increment"`
		ScanTime       float64 `json:"scan_time"`
		RangeMin       float64 `json:"range_min"`
		RangeMax       float64 `json:"range_max"`
		Ranges         []float64
		Intensities    []float64
	}
}

// ImuMessage is a bag record of sensor_msgs/Imu.
type ImuMessage struct {
	Meta Time
	Data struct {
		Header                       Header
		Orientation                  Quaternion
		OrientationCovariance        [9]float64 `json:"orientation_covariance"`
		AngularVelocity              Vector3    `json:"angular_velocity"`
		AngularVelocityCovariance    [9]float64 `json:"angular_velocity_covariance"`
		LinearAcceleration           Vector3    `json:"linear_acceleration"`
		LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
	}
}

// OdometryMessage is a bag record of nav_msgs/Odometry.
type OdometryMessage struct {
	Meta Time
	Data struct {
		Header       Header
		ChildFrameID string `json:"child_frame_id"`
		Pose         struct {
			Pose       Pose
			Covariance [36]float64
		}
		Twist struct {
			Twist      Twist
			Covariance [36]float64
		}
	}
}

// PoseStampedMessage is a bag record of geometry_msgs/PoseStamped.
type PoseStampedMessage struct {
	Meta Time
	Data struct {
		Header Header
		Pose   Pose
	}
}
