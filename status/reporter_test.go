package status

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/safety"
)

type fixedState safety.OperationalState

func (s fixedState) State() safety.OperationalState { return safety.OperationalState(s) }

type lines struct {
	got []string
	err error
}

func (l *lines) PublishStatus(_ context.Context, line string) error {
	l.got = append(l.got, line)
	return l.err
}

func TestText(t *testing.T) {
	test.That(t, Text(safety.Operational), test.ShouldEqual, "Eos OS: OPERATIONAL - Neural and navigation systems active")
	test.That(t, Text(safety.Initializing), test.ShouldEqual, "Eos OS: DEGRADED - System initialization incomplete")
	test.That(t, Text(safety.Degraded), test.ShouldEqual, DegradedText)
	test.That(t, Text(safety.EmergencyStop), test.ShouldEqual, EmergencyStopText)
	test.That(t, Text(safety.OperationalState(99)), test.ShouldEqual, DegradedText)
}

func TestReport(t *testing.T) {
	out := &lines{}
	r := NewReporter(fixedState(safety.Operational), out, logging.NewTestLogger(t))
	test.That(t, r.Report(context.Background()), test.ShouldEqual, OperationalText)
	test.That(t, out.got, test.ShouldResemble, []string{OperationalText})
}

func TestReportPublishFailure(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	out := &lines{err: errors.New("transport down")}
	r := NewReporter(fixedState(safety.Degraded), out, logger)
	test.That(t, r.Report(context.Background()), test.ShouldEqual, DegradedText)
	test.That(t, logs.FilterMessage("failed to publish status").Len(), test.ShouldEqual, 1)

	// a reporter without a publisher still reports
	test.That(t, NewReporter(fixedState(safety.EmergencyStop), nil, logger).Report(context.Background()),
		test.ShouldEqual, EmergencyStopText)
}
