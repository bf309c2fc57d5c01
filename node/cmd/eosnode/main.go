// Package main runs an eos control node.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/eosrobotics/eos/config"
	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/node"
	"github.com/eosrobotics/eos/ros"
	"github.com/eosrobotics/eos/telemetry"
	"github.com/eosrobotics/eos/transport"
)

const (
	flagConfig    = "config"
	flagBag       = "bag"
	flagBagSpeed  = "bag-speed"
	flagBagLoop   = "bag-loop"
	flagTelemetry = "telemetry"
	flagDebug     = "debug"
	flagLogFile   = "log-file"
)

func main() {
	app := &cli.App{
		Name:  "eosnode",
		Usage: "run the eos control loop",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`; defaults are used when unset",
			},
			&cli.StringFlag{
				Name:  flagBag,
				Usage: "replay sensor topics from the rosbag `FILE`",
			},
			&cli.Float64Flag{
				Name:  flagBagSpeed,
				Value: 1,
				Usage: "replay speed factor",
			},
			&cli.BoolFlag{
				Name:  flagBagLoop,
				Usage: "restart the bag when it ends",
			},
			&cli.StringFlag{
				Name:  flagTelemetry,
				Usage: "record commands and status lines to the SQLite database `FILE`",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to the rotated file `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Action: runNode,
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "validate a configuration file",
				ArgsUsage: "FILE",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return errors.New("expected exactly one config file")
					}
					cfg, err := config.Read(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, cfg.String())
					return nil
				},
			},
			{
				Name:  "schema",
				Usage: "print the JSON schema of the configuration file",
				Action: func(c *cli.Context) error {
					data, err := config.Schema()
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, string(data))
					return nil
				},
			},
			{
				Name:      "runs",
				Usage:     "list the runs recorded in a telemetry database",
				ArgsUsage: "FILE",
				Action:    listRuns,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger(c *cli.Context, cfg *config.Config) (logging.Logger, error) {
	level := logging.DEBUG
	if !c.Bool(flagDebug) {
		var err error
		if level, err = cfg.Level(); err != nil {
			return nil, err
		}
	}
	cores := []zapcore.Core{logging.NewStdoutCore()}
	if path := c.String(flagLogFile); path != "" {
		cores = append(cores, logging.NewFileCore(path))
	}
	return logging.NewLoggerWithCores("eos", level, cores...), nil
}

func runNode(c *cli.Context) (err error) {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		if cfg, err = config.Read(path); err != nil {
			return err
		}
	}
	logger, err := newLogger(c, cfg)
	if err != nil {
		return err
	}
	logging.ReplaceGlobal(logger)
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()

	var sink transport.Sink = transport.NewLogSink(logger.Sublogger("transport"))
	if path := c.String(flagTelemetry); path != "" {
		store, openErr := telemetry.Open(ctx, path, cfg.String(), nil, logger.Sublogger("telemetry"))
		if openErr != nil {
			return openErr
		}
		defer func() {
			err = multierr.Combine(err, store.Close())
		}()
		sink = transport.Fanout(sink, store)
	}

	n, err := node.New(cfg, logger, node.Options{Sink: sink})
	if err != nil {
		return err
	}
	if err := n.Setup(ctx); err != nil {
		// keep running degraded; only stop commands are published
		logger.Errorw("node is degraded", "error", err)
	}
	if err := n.Start(); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, n.Stop())
	}()

	if path := c.String(flagBag); path != "" {
		player, err := newPlayer(path, n, ros.PlayerOptions{Speed: c.Float64(flagBagSpeed), Loop: c.Bool(flagBagLoop)}, logger)
		if err != nil {
			return err
		}
		player.Start(ctx)
		defer player.Stop()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func newPlayer(path string, n *node.Node, opts ros.PlayerOptions, logger logging.Logger) (*ros.Player, error) {
	bag, err := ros.ReadBag(path)
	if err != nil {
		return nil, err
	}
	msgs, err := ros.LoadMessages(bag, logger.Sublogger("ros"))
	if err != nil {
		return nil, err
	}
	logger.Infow("replaying bag", "path", path, "messages", len(msgs))
	return ros.NewPlayer(msgs, n, opts, logger.Sublogger("ros")), nil
}

func listRuns(c *cli.Context) (err error) {
	if c.Args().Len() != 1 {
		return errors.New("expected exactly one telemetry database")
	}
	store, err := telemetry.Open(c.Context, c.Args().First(), "", nil, logging.NewBlankLogger("telemetry"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, store.Close())
	}()
	runs, err := store.Runs(c.Context)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Run", "Commands", "Stops", "Mean linear", "Max linear", "Mean |angular|", "Duration", "Statuses"})
	for _, id := range runs {
		if id == store.RunID() {
			continue
		}
		sum, err := store.Summarize(c.Context, id)
		if err != nil {
			return err
		}
		counts, err := store.StatusCounts(c.Context, id)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{
			id, sum.Commands, sum.Stops,
			fmt.Sprintf("%.3f", sum.MeanLinear), fmt.Sprintf("%.3f", sum.MaxLinear), fmt.Sprintf("%.3f", sum.MeanAngular),
			sum.Duration.Round(time.Millisecond), statusColumn(counts),
		})
	}
	t.Render()
	return nil
}

func statusColumn(counts map[string]int) string {
	lines := lo.Keys(counts)
	sort.Strings(lines)
	return strings.Join(lo.Map(lines, func(line string, _ int) string {
		return fmt.Sprintf("%dx %s", counts[line], line)
	}), "\n")
}
