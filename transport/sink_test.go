package transport

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/motion"
	"github.com/eosrobotics/eos/sensorstate"
)

type failingSink struct{ Recorder }

func (f *failingSink) PublishCommand(context.Context, motion.Command) error {
	return errors.New("link down")
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder()
	test.That(t, r.PublishCommand(ctx, motion.Command{Linear: 0.1}), test.ShouldBeNil)
	test.That(t, r.PublishStatus(ctx, "ok"), test.ShouldBeNil)
	test.That(t, r.PublishGoal(ctx, sensorstate.Goal{Position: r3.Vector{X: 1}}), test.ShouldBeNil)

	cmds := r.Commands()
	test.That(t, cmds, test.ShouldResemble, []motion.Command{{Linear: 0.1}})
	cmds[0].Linear = 9
	test.That(t, r.Commands()[0].Linear, test.ShouldEqual, 0.1)
	test.That(t, r.Statuses(), test.ShouldResemble, []string{"ok"})
	test.That(t, r.Goals()[0].Position.X, test.ShouldEqual, 1.0)
}

func TestLogSink(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	s := NewLogSink(logger)
	ctx := context.Background()
	test.That(t, s.PublishStatus(ctx, "Eos OS: OPERATIONAL"), test.ShouldBeNil)
	test.That(t, s.PublishCommand(ctx, motion.Command{Angular: 0.2}), test.ShouldBeNil)
	test.That(t, s.PublishGoal(ctx, sensorstate.Goal{}), test.ShouldBeNil)
	test.That(t, logs.FilterMessage("Eos OS: OPERATIONAL").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("cmd_vel").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("goal").Len(), test.ShouldEqual, 1)
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	a, b := NewRecorder(), &failingSink{}
	c := NewRecorder()
	f := Fanout(a, b, c)

	err := f.PublishCommand(ctx, motion.Command{Linear: 0.3})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 1)
	// sinks after the failing one still receive the message
	test.That(t, c.Commands(), test.ShouldResemble, []motion.Command{{Linear: 0.3}})
	test.That(t, a.Commands(), test.ShouldResemble, []motion.Command{{Linear: 0.3}})

	test.That(t, f.PublishStatus(ctx, "x"), test.ShouldBeNil)
	test.That(t, b.Statuses(), test.ShouldResemble, []string{"x"})
	test.That(t, f.PublishGoal(ctx, sensorstate.Goal{}), test.ShouldBeNil)
	test.That(t, len(c.Goals()), test.ShouldEqual, 1)
}
