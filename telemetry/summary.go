package telemetry

import (
	"context"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
)

// Summary condenses the commands of one run.
type Summary struct {
	RunID    string
	Commands int
	// Stops counts zero commands.
	Stops       int
	MeanLinear  float64
	MaxLinear   float64
	MeanAngular float64 // of the magnitude
	Duration    time.Duration
}

// Summarize computes the Summary of a run. A run without commands summarizes to zeros.
func (s *Store) Summarize(ctx context.Context, runID string) (Summary, error) {
	cmds, err := s.Commands(ctx, runID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{RunID: runID, Commands: len(cmds)}
	if len(cmds) == 0 {
		return sum, nil
	}
	sum.Stops = lo.CountBy(cmds, func(c CommandRecord) bool { return c.Command.IsZero() })
	sum.Duration = cmds[len(cmds)-1].Stamp.Sub(cmds[0].Stamp)

	linear := stats.Float64Data(lo.Map(cmds, func(c CommandRecord, _ int) float64 { return c.Command.Linear }))
	angular := stats.Float64Data(lo.Map(cmds, func(c CommandRecord, _ int) float64 { return math.Abs(c.Command.Angular) }))
	if sum.MeanLinear, err = linear.Mean(); err != nil {
		return Summary{}, err
	}
	if sum.MaxLinear, err = linear.Max(); err != nil {
		return Summary{}, err
	}
	if sum.MeanAngular, err = angular.Mean(); err != nil {
		return Summary{}, err
	}
	return sum, nil
}
