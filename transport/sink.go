// Package transport holds the outbound side of the node: the sinks commands, status lines and
// goal echoes are published to.
package transport

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/motion"
	"github.com/eosrobotics/eos/sensorstate"
)

// Sink receives every outbound message of a node.
type Sink interface {
	PublishCommand(ctx context.Context, cmd motion.Command) error
	PublishStatus(ctx context.Context, line string) error
	PublishGoal(ctx context.Context, goal sensorstate.Goal) error
}

// LogSink writes outbound messages to a logger. Commands go out at debug since they are
// published at the control rate.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink returns a LogSink.
func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// PublishCommand implements Sink.
func (s *LogSink) PublishCommand(ctx context.Context, cmd motion.Command) error {
	s.logger.CDebugw(ctx, "cmd_vel", "linear", cmd.Linear, "angular", cmd.Angular)
	return nil
}

// PublishStatus implements Sink.
func (s *LogSink) PublishStatus(ctx context.Context, line string) error {
	s.logger.CInfow(ctx, line)
	return nil
}

// PublishGoal implements Sink.
func (s *LogSink) PublishGoal(ctx context.Context, goal sensorstate.Goal) error {
	s.logger.CInfow(ctx, "goal", "x", goal.Position.X, "y", goal.Position.Y, "yaw", goal.Yaw())
	return nil
}

// Recorder keeps every outbound message in memory.
type Recorder struct {
	mu       sync.Mutex
	commands []motion.Command
	statuses []string
	goals    []sensorstate.Goal
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// PublishCommand implements Sink.
func (r *Recorder) PublishCommand(_ context.Context, cmd motion.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	return nil
}

// PublishStatus implements Sink.
func (r *Recorder) PublishStatus(_ context.Context, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, line)
	return nil
}

// PublishGoal implements Sink.
func (r *Recorder) PublishGoal(_ context.Context, goal sensorstate.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goals = append(r.goals, goal)
	return nil
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []motion.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]motion.Command(nil), r.commands...)
}

// Statuses returns a copy of the recorded status lines.
func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

// Goals returns a copy of the echoed goals.
func (r *Recorder) Goals() []sensorstate.Goal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sensorstate.Goal(nil), r.goals...)
}

type fanout []Sink

// Fanout publishes to every sink in order. All sinks are tried even when one fails.
func Fanout(sinks ...Sink) Sink {
	return fanout(sinks)
}

func (f fanout) PublishCommand(ctx context.Context, cmd motion.Command) error {
	var errs error
	for _, s := range f {
		errs = multierr.Append(errs, s.PublishCommand(ctx, cmd))
	}
	return errs
}

func (f fanout) PublishStatus(ctx context.Context, line string) error {
	var errs error
	for _, s := range f {
		errs = multierr.Append(errs, s.PublishStatus(ctx, line))
	}
	return errs
}

func (f fanout) PublishGoal(ctx context.Context, goal sensorstate.Goal) error {
	var errs error
	for _, s := range f {
		errs = multierr.Append(errs, s.PublishGoal(ctx, goal))
	}
	return errs
}
