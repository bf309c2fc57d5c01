// Package config defines the eos node configuration and how it is read from disk.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/utils"
)

// Defaults for every option. The rates and limits match the node parameters the robot has
// always been launched with.
const (
	DefaultNeuralUpdateRate     = 10.0
	DefaultNavigationUpdateRate = 15.0
	DefaultStatusUpdateRate     = 1.0
	DefaultSafetyDistance       = 0.5
	DefaultMaxVelocity          = 0.5
	DefaultMaxAngularVelocity   = 1.0
	DefaultMaxAcceleration      = 1.0
	DefaultGoalTolerance        = 0.1
	DefaultNeuralModelPath      = "models/default_snn.json"
	DefaultMaxRangeAge          = 200 * time.Millisecond
	DefaultMaxInertialAge       = 250 * time.Millisecond
	DefaultMaxOdometryAge       = 500 * time.Millisecond
	DefaultMaxMissedDecisions   = 1
	DefaultLogLevel             = "info"
)

// Config is the full set of named options the node exposes.
type Config struct {
	// NeuralUpdateRate is the decision engine rate in Hz.
	NeuralUpdateRate float64 `json:"neural_update_rate"`
	// NavigationUpdateRate is the motion controller rate in Hz.
	NavigationUpdateRate float64 `json:"navigation_update_rate"`
	// StatusUpdateRate is the status reporter rate in Hz.
	StatusUpdateRate float64 `json:"status_update_rate"`
	// SafetyDistance is the minimum tolerated range, in meters, before a forced stop.
	SafetyDistance float64 `json:"safety_distance"`
	// MaxVelocity is the hard clamp on linear velocity in m/s.
	MaxVelocity float64 `json:"max_velocity"`
	// MaxAngularVelocity is the hard clamp on angular velocity in rad/s.
	MaxAngularVelocity float64 `json:"max_angular_velocity"`
	// MaxAcceleration bounds the change of the commanded velocity, in m/s^2 (rad/s^2 for turns).
	MaxAcceleration float64 `json:"max_acceleration"`
	// GoalTolerance is the distance in meters at which a goal counts as reached.
	GoalTolerance float64 `json:"goal_tolerance"`
	// NeuralModelPath locates the model loaded by the inference collaborator.
	NeuralModelPath string `json:"neural_model_path"`

	// The stream ages are written as duration strings such as "200ms".
	MaxRangeAge    time.Duration `json:"max_range_age" jsonschema:"type=string"`
	MaxInertialAge time.Duration `json:"max_inertial_age" jsonschema:"type=string"`
	MaxOdometryAge time.Duration `json:"max_odometry_age" jsonschema:"type=string"`
	// MaxMissedDecisions is how many consecutive decision cycles may fail to produce a fresh
	// vector before the controller stops.
	MaxMissedDecisions int `json:"max_missed_decisions"`

	LogLevel string `json:"log_level"`
}

// Default returns a config populated with every default.
func Default() *Config {
	return &Config{
		NeuralUpdateRate:     DefaultNeuralUpdateRate,
		NavigationUpdateRate: DefaultNavigationUpdateRate,
		StatusUpdateRate:     DefaultStatusUpdateRate,
		SafetyDistance:       DefaultSafetyDistance,
		MaxVelocity:          DefaultMaxVelocity,
		MaxAngularVelocity:   DefaultMaxAngularVelocity,
		MaxAcceleration:      DefaultMaxAcceleration,
		GoalTolerance:        DefaultGoalTolerance,
		NeuralModelPath:      DefaultNeuralModelPath,
		MaxRangeAge:          DefaultMaxRangeAge,
		MaxInertialAge:       DefaultMaxInertialAge,
		MaxOdometryAge:       DefaultMaxOdometryAge,
		MaxMissedDecisions:   DefaultMaxMissedDecisions,
		LogLevel:             DefaultLogLevel,
	}
}

// DecisionPeriod is the interval between decision cycles.
func (c *Config) DecisionPeriod() time.Duration {
	return utils.RateToPeriod(c.NeuralUpdateRate)
}

// ControlPeriod is the interval between control cycles.
func (c *Config) ControlPeriod() time.Duration {
	return utils.RateToPeriod(c.NavigationUpdateRate)
}

// StatusPeriod is the interval between status reports.
func (c *Config) StatusPeriod() time.Duration {
	return utils.RateToPeriod(c.StatusUpdateRate)
}

// Level returns the parsed log level.
func (c *Config) Level() (logging.Level, error) {
	return logging.LevelFromString(c.LogLevel)
}

// Validate checks every option and returns all violations at once.
func (c *Config) Validate(path string) error {
	var errs error
	invalid := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.Errorf(format, args...)))
	}

	type option struct {
		name  string
		value float64
	}
	for _, rate := range []option{
		{"neural_update_rate", c.NeuralUpdateRate},
		{"navigation_update_rate", c.NavigationUpdateRate},
		{"status_update_rate", c.StatusUpdateRate},
	} {
		if rate.value <= 0 {
			invalid("%s must be positive, got %v", rate.name, rate.value)
		}
	}
	if c.NavigationUpdateRate < c.NeuralUpdateRate {
		invalid("navigation_update_rate (%v) must be at least neural_update_rate (%v)",
			c.NavigationUpdateRate, c.NeuralUpdateRate)
	}
	if c.StatusUpdateRate > c.NavigationUpdateRate {
		invalid("status_update_rate (%v) must not exceed navigation_update_rate (%v)",
			c.StatusUpdateRate, c.NavigationUpdateRate)
	}

	for _, limit := range []option{
		{"safety_distance", c.SafetyDistance},
		{"max_velocity", c.MaxVelocity},
		{"max_angular_velocity", c.MaxAngularVelocity},
		{"max_acceleration", c.MaxAcceleration},
		{"goal_tolerance", c.GoalTolerance},
	} {
		if limit.value <= 0 {
			invalid("%s must be positive, got %v", limit.name, limit.value)
		}
	}

	if c.MaxRangeAge <= 0 || c.MaxInertialAge <= 0 || c.MaxOdometryAge <= 0 {
		invalid("max_range_age, max_inertial_age and max_odometry_age must all be positive")
	} else if c.MaxRangeAge >= c.MaxInertialAge || c.MaxRangeAge >= c.MaxOdometryAge {
		invalid("max_range_age (%v) must be the tightest staleness threshold (inertial %v, odometry %v)",
			c.MaxRangeAge, c.MaxInertialAge, c.MaxOdometryAge)
	}
	if c.MaxMissedDecisions < 0 {
		invalid("max_missed_decisions must not be negative, got %d", c.MaxMissedDecisions)
	}

	if c.NeuralModelPath == "" {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "neural_model_path"))
	}
	if _, err := c.Level(); err != nil {
		invalid("%s", err)
	}
	return errs
}

// String renders the options worth logging at startup.
func (c *Config) String() string {
	return fmt.Sprintf(
		"neural %.1fHz, navigation %.1fHz, status %.1fHz, safety distance %.2fm, max velocity %.2fm/s, model %q",
		c.NeuralUpdateRate, c.NavigationUpdateRate, c.StatusUpdateRate, c.SafetyDistance, c.MaxVelocity, c.NeuralModelPath,
	)
}
