// Package telemetry records what a node published (commands, status lines and goal echoes) in a
// SQLite database, one run per process.
package telemetry

import (
	"context"
	"database/sql"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	// registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/motion"
	"github.com/eosrobotics/eos/sensorstate"
)

// Store is a transport sink writing to SQLite.
type Store struct {
	db     *sql.DB
	runID  string
	clock  clock.Clock
	logger logging.Logger
}

// Open opens or creates the database at path, migrates it, and starts a new run. configDesc is
// stored with the run for later reference.
func Open(ctx context.Context, path, configDesc string, clk clock.Clock, logger logging.Logger) (*Store, error) {
	if clk == nil {
		clk = clock.New()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open telemetry database %q", path)
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;"); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "cannot configure telemetry database"), db.Close())
	}
	if err := migrateUp(db); err != nil {
		return nil, multierr.Combine(err, db.Close())
	}

	s := &Store{db: db, runID: uuid.NewString(), clock: clk, logger: logger}
	if _, err := db.ExecContext(ctx, "INSERT INTO runs (run_id, started_at, config) VALUES (?, ?, ?)",
		s.runID, clk.Now().UnixNano(), configDesc); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "cannot record run"), db.Close())
	}
	logger.Infow("telemetry run started", "run_id", s.runID, "path", path)
	return s, nil
}

// RunID identifies the current run.
func (s *Store) RunID() string {
	return s.runID
}

// PublishCommand records a command.
func (s *Store) PublishCommand(ctx context.Context, cmd motion.Command) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO commands (run_id, stamp, linear, angular) VALUES (?, ?, ?, ?)",
		s.runID, s.clock.Now().UnixNano(), cmd.Linear, cmd.Angular)
	return errors.Wrap(err, "cannot record command")
}

// PublishStatus records a status line.
func (s *Store) PublishStatus(ctx context.Context, line string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO statuses (run_id, stamp, line) VALUES (?, ?, ?)",
		s.runID, s.clock.Now().UnixNano(), line)
	return errors.Wrap(err, "cannot record status")
}

// PublishGoal records a goal echo.
func (s *Store) PublishGoal(ctx context.Context, goal sensorstate.Goal) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO goals (run_id, stamp, x, y, yaw) VALUES (?, ?, ?, ?, ?)",
		s.runID, s.clock.Now().UnixNano(), goal.Position.X, goal.Position.Y, goal.Yaw())
	return errors.Wrap(err, "cannot record goal")
}

// CommandRecord is a recorded command.
type CommandRecord struct {
	Stamp   time.Time
	Command motion.Command
}

// Commands returns the commands of a run in publication order.
func (s *Store) Commands(ctx context.Context, runID string) ([]CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT stamp, linear, angular FROM commands WHERE run_id = ? ORDER BY rowid", runID)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query commands")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warnw("failed to close rows", "error", err)
		}
	}()

	var out []CommandRecord
	for rows.Next() {
		var stamp int64
		var rec CommandRecord
		if err := rows.Scan(&stamp, &rec.Command.Linear, &rec.Command.Angular); err != nil {
			return nil, errors.Wrap(err, "cannot scan command")
		}
		rec.Stamp = time.Unix(0, stamp)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StatusCounts returns how many times each status line was published in a run.
func (s *Store) StatusCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT line, COUNT(*) FROM statuses WHERE run_id = ? GROUP BY line", runID)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query statuses")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warnw("failed to close rows", "error", err)
		}
	}()

	out := map[string]int{}
	for rows.Next() {
		var line string
		var n int
		if err := rows.Scan(&line, &n); err != nil {
			return nil, errors.Wrap(err, "cannot scan status")
		}
		out[line] = n
	}
	return out, rows.Err()
}

// Runs lists the ids of all recorded runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT run_id FROM runs ORDER BY started_at, rowid")
	if err != nil {
		return nil, errors.Wrap(err, "cannot query runs")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warnw("failed to close rows", "error", err)
		}
	}()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "cannot scan run")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
