// Package node wires the sensor state, decision engine, motion controller, safety monitor and
// status reporter into one control loop instance, and drives them from independent timers.
//
// A Node is built with New, set up with Setup, then run with Start until Stop. Ingestion methods
// may be called from any goroutine at any time, including before Start.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/eosrobotics/eos/config"
	"github.com/eosrobotics/eos/decision"
	"github.com/eosrobotics/eos/decision/feedforward"
	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/motion"
	"github.com/eosrobotics/eos/safety"
	"github.com/eosrobotics/eos/sensorstate"
	"github.com/eosrobotics/eos/status"
	"github.com/eosrobotics/eos/transport"
)

// ErrSetup is returned by Setup when a component could not be initialized. The node keeps
// running in DEGRADED and only ever publishes stop commands.
var ErrSetup = errors.New("setup failed")

// InferrerFactory builds the inference collaborator during Setup.
type InferrerFactory func(ctx context.Context, cfg *config.Config) (decision.Inferrer, error)

// LoadFeedforward is the default InferrerFactory. It loads the model at neural_model_path.
func LoadFeedforward(_ context.Context, cfg *config.Config) (decision.Inferrer, error) {
	return feedforward.Load(cfg.NeuralModelPath)
}

// Options are the collaborators of a Node. Every field is optional.
type Options struct {
	Clock    clock.Clock
	Inferrer InferrerFactory
	// Policy defaults to a motion.GuidancePolicy built from the config.
	Policy motion.Policy
	// Sink receives commands, status lines and goal echoes. It defaults to a transport.LogSink.
	Sink transport.Sink
}

// Stats are counters of node activity.
type Stats struct {
	DecisionCycles uint64
	ControlCycles  uint64
	StopCommands   uint64
	StatusReports  uint64
	Accepted       uint64
	Rejected       uint64
}

// Node is one control loop instance.
type Node struct {
	cfg    *config.Config
	logger logging.Logger
	clock  clock.Clock

	sensors    *sensorstate.State
	monitor    *safety.Monitor
	engine     *decision.Engine
	controller *motion.Controller
	reporter   *status.Reporter
	sink       transport.Sink
	// dropWarnings throttles warnings about rejected samples; the rest go out at debug.
	dropWarnings *rate.Limiter

	newInferrer InferrerFactory
	scheduler   gocron.Scheduler
	cancelCtx   context.Context
	cancel      context.CancelFunc
	setupDone   atomic.Bool
	started     atomic.Bool

	decisionCycles atomic.Uint64
	controlCycles  atomic.Uint64
	stopCommands   atomic.Uint64
	statusReports  atomic.Uint64
	accepted       atomic.Uint64
	rejected       atomic.Uint64
}

// New builds a Node in INITIALIZING. Nothing runs until Start.
func New(cfg *config.Config, logger logging.Logger, opts Options) (*Node, error) {
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	if opts.Inferrer == nil {
		opts.Inferrer = LoadFeedforward
	}
	if opts.Sink == nil {
		opts.Sink = transport.NewLogSink(logger.Sublogger("transport"))
	}
	if opts.Policy == nil {
		policy, err := motion.NewGuidancePolicy(motion.GuidanceConfig{
			MaxLinear:       cfg.MaxVelocity,
			MaxAngular:      cfg.MaxAngularVelocity,
			MaxAcceleration: cfg.MaxAcceleration,
			GoalTolerance:   cfg.GoalTolerance,
			Period:          cfg.ControlPeriod(),
		})
		if err != nil {
			return nil, err
		}
		opts.Policy = policy
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create scheduler")
	}

	n := &Node{
		cfg:          cfg,
		logger:       logger,
		clock:        clk,
		sensors:      sensorstate.New(clk),
		sink:         opts.Sink,
		dropWarnings: rate.NewLimiter(rate.Every(time.Second), 5),
		newInferrer:  opts.Inferrer,
		scheduler:    scheduler,
	}
	n.cancelCtx, n.cancel = context.WithCancel(context.Background())
	n.monitor = safety.NewMonitor(safety.Limits{
		MaxRangeAge:    cfg.MaxRangeAge,
		MaxInertialAge: cfg.MaxInertialAge,
		MaxOdometryAge: cfg.MaxOdometryAge,
		SafetyDistance: cfg.SafetyDistance,
	}, logger.Sublogger("safety"))
	n.engine = decision.NewEngine(n.sensors, nil, cfg.DecisionPeriod(), cfg.MaxMissedDecisions, clk, logger.Sublogger("decision"))
	n.controller = motion.NewController(
		n.sensors,
		n.engine,
		n.monitor,
		opts.Policy,
		n.sink,
		motion.Limits{MaxLinear: cfg.MaxVelocity, MaxAngular: cfg.MaxAngularVelocity},
		logger.Sublogger("motion"),
	)
	n.reporter = status.NewReporter(n.monitor, n.sink, logger.Sublogger("status"))
	return n, nil
}

// Setup initializes the inference collaborator. On failure the node moves to DEGRADED and the
// returned error wraps ErrSetup; the node can still be started and will publish stop commands.
func (n *Node) Setup(ctx context.Context) error {
	if !n.setupDone.CompareAndSwap(false, true) {
		return errors.New("setup already ran")
	}
	inferrer, err := n.newInferrer(ctx, n.cfg)
	if err != nil {
		err = errors.Wrap(ErrSetup, err.Error())
		n.monitor.Initialized(err)
		return err
	}
	n.engine.Use(inferrer)
	n.monitor.Initialized(nil)
	n.logger.Infow("setup complete", "config", n.cfg.String())
	return nil
}

// Start schedules the decision, control and status timers. Each runs in singleton mode so a slow
// cycle delays the next one instead of overlapping it.
func (n *Node) Start() error {
	if !n.started.CompareAndSwap(false, true) {
		return errors.New("node already started")
	}
	jobs := []struct {
		name   string
		period time.Duration
		run    func(context.Context)
	}{
		{"decision", n.cfg.DecisionPeriod(), func(ctx context.Context) { n.DecisionCycle(ctx) }},
		{"control", n.cfg.ControlPeriod(), func(ctx context.Context) { n.ControlCycle(ctx) }},
		{"status", n.cfg.StatusPeriod(), func(ctx context.Context) { n.StatusCycle(ctx) }},
	}
	for _, job := range jobs {
		j, err := n.scheduler.NewJob(
			gocron.DurationJob(job.period),
			gocron.NewTask(n.guard(job.name, job.run)),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return multierr.Combine(errors.Wrapf(err, "cannot schedule %s timer", job.name), n.scheduler.Shutdown())
		}
		n.logger.Debugw("scheduled timer", "timer", job.name, "period", job.period, "id", j.ID())
	}
	n.scheduler.Start()
	n.logger.Infow("node started", "state", n.State().String())
	return nil
}

// guard keeps a panicking cycle from taking its timer down with it.
func (n *Node) guard(name string, run func(context.Context)) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				n.logger.Errorw("timer cycle panicked", "timer", name, "panic", fmt.Sprint(r))
			}
		}()
		run(n.cancelCtx)
	}
}

// Stop cancels the timers and waits for in-flight cycles to return. No command is published on
// the way out.
func (n *Node) Stop() error {
	n.cancel()
	err := n.scheduler.Shutdown()
	n.logger.Info("node stopped")
	return err
}

// DecisionCycle runs one decision cycle.
func (n *Node) DecisionCycle(ctx context.Context) {
	n.decisionCycles.Inc()
	if err := n.engine.Cycle(ctx); err != nil && !errors.Is(err, decision.ErrMissingInput) {
		n.logger.CDebugw(ctx, "decision cycle missed", "error", err)
	}
}

// ControlCycle runs one control cycle and returns what it published.
func (n *Node) ControlCycle(ctx context.Context) motion.Result {
	n.controlCycles.Inc()
	r := n.controller.Cycle(ctx)
	if r.Command.IsZero() {
		n.stopCommands.Inc()
	}
	return r
}

// StatusCycle publishes the status line and returns it.
func (n *Node) StatusCycle(ctx context.Context) string {
	n.statusReports.Inc()
	return n.reporter.Report(ctx)
}

// State returns the operational state.
func (n *Node) State() safety.OperationalState {
	return n.monitor.State()
}

// ResetEmergencyStop clears a latched emergency stop. It fails on a DEGRADED node.
func (n *Node) ResetEmergencyStop() error {
	return n.monitor.Reset()
}

// Decision returns the current decision vector and its staleness.
func (n *Node) Decision() decision.Status {
	return n.engine.Latest()
}

// Stats returns a snapshot of the activity counters.
func (n *Node) Stats() Stats {
	return Stats{
		DecisionCycles: n.decisionCycles.Load(),
		ControlCycles:  n.controlCycles.Load(),
		StopCommands:   n.stopCommands.Load(),
		StatusReports:  n.statusReports.Load(),
		Accepted:       n.accepted.Load(),
		Rejected:       n.rejected.Load(),
	}
}
