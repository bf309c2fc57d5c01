package motion

import (
	"fmt"

	"github.com/eosrobotics/eos/utils"
)

// Command is a velocity command as published to the base. Every Command leaving a Controller is
// within the configured limits.
type Command struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// IsZero reports whether c is the stop command.
func (c Command) IsZero() bool {
	return c.Linear == 0 && c.Angular == 0
}

func (c Command) String() string {
	return fmt.Sprintf("linear=%.3f angular=%.3f", c.Linear, c.Angular)
}

// RawCommand is a control policy's output before clamping.
type RawCommand struct {
	Linear  float64
	Angular float64
}

// Limits are the hard command bounds.
type Limits struct {
	MaxLinear  float64
	MaxAngular float64
}

// Clamp bounds raw to the limits.
func (l Limits) Clamp(raw RawCommand) Command {
	return Command{
		Linear:  utils.Clamp(raw.Linear, l.MaxLinear),
		Angular: utils.Clamp(raw.Angular, l.MaxAngular),
	}
}
