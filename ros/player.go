package ros

import (
	"context"
	"time"

	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/eosrobotics/eos/logging"
	"github.com/eosrobotics/eos/sensorstate"
	"github.com/eosrobotics/eos/utils"
)

// Ingester accepts sensor payloads as if they had just arrived from the transport.
type Ingester interface {
	Ingest(ctx context.Context, stream sensorstate.StreamID, payload sensorstate.Payload) error
}

// PlayerOptions controls replay pacing.
type PlayerOptions struct {
	// Speed scales the recorded gaps between messages. Zero or negative means 1.
	Speed float64
	// Loop restarts from the first message after the last one.
	Loop bool
}

// Player feeds recorded messages to an Ingester, keeping the recorded spacing between them.
type Player struct {
	msgs     []Message
	ingester Ingester
	opts     PlayerOptions
	logger   logging.Logger
	workers  *utils.Workers

	delivered atomic.Int64
	rejected  atomic.Int64
}

// NewPlayer returns a Player over msgs, which must be ordered by record time.
func NewPlayer(msgs []Message, ingester Ingester, opts PlayerOptions, logger logging.Logger) *Player {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	return &Player{msgs: msgs, ingester: ingester, opts: opts, logger: logger}
}

// Play delivers every message and returns when done or when ctx is cancelled.
func (p *Player) Play(ctx context.Context) error {
	if len(p.msgs) == 0 {
		return nil
	}
	for {
		if err := p.playOnce(ctx); err != nil {
			return err
		}
		if !p.opts.Loop {
			p.logger.Infow("bag replay finished", "delivered", p.delivered.Load(), "rejected", p.rejected.Load())
			return nil
		}
	}
}

func (p *Player) playOnce(ctx context.Context) error {
	var prev time.Time
	for i, msg := range p.msgs {
		recorded := msg.Recorded.Time()
		if i > 0 {
			gap := time.Duration(float64(recorded.Sub(prev)) / p.opts.Speed)
			if gap > 0 && !goutils.SelectContextOrWait(ctx, gap) {
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		prev = recorded

		if err := p.ingester.Ingest(ctx, msg.Stream, msg.Payload); err != nil {
			p.rejected.Inc()
			p.logger.Debugw("replayed message rejected", "topic", msg.Topic, "error", err)
			continue
		}
		p.delivered.Inc()
	}
	return nil
}

// Start plays in the background until Stop is called or the bag ends.
func (p *Player) Start(ctx context.Context) {
	p.workers = utils.NewWorkers(ctx, func(ctx context.Context) {
		if err := p.Play(ctx); err != nil && ctx.Err() == nil {
			p.logger.Errorw("bag replay failed", "error", err)
		}
	})
}

// Stop cancels a background replay and waits for it to return.
func (p *Player) Stop() {
	if p.workers != nil {
		p.workers.Stop()
	}
}

// Counts returns how many messages were accepted and rejected so far.
func (p *Player) Counts() (delivered, rejected int64) {
	return p.delivered.Load(), p.rejected.Load()
}
