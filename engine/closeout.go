package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/royalbidz/bidcore/clock"
	"github.com/royalbidz/bidcore/core"
)

const (
	closeoutPending int32 = iota
	closeoutArmed
	closeoutFired
)

// Closeout guarantees each auction's terminal transition is triggered
// exactly once from the scheduler's perspective: Pending until the auction
// opens, Armed while watching the deadline, Fired forever after. Racing
// triggers (deadline elapsing while a manual close is in flight) are
// forwarded anyway and absorbed by the ledger's idempotent close.
type Closeout struct {
	auctionID uuid.UUID
	proc      *Processor
	clk       clock.Clock
	log       *logrus.Entry

	state  atomic.Int32
	disarm chan struct{}
}

func newCloseout(p *Processor, clk clock.Clock, log *logrus.Logger) *Closeout {
	return &Closeout{
		auctionID: p.auctionID,
		proc:      p,
		clk:       clk,
		log:       log.WithField("auction_id", p.auctionID),
		disarm:    make(chan struct{}),
	}
}

// Arm registers the end deadline and starts the watcher. Called once when
// the auction opens; re-arming after firing is not possible (a closed
// auction cannot reopen).
func (c *Closeout) Arm(ctx context.Context, deadline time.Time) {
	if !c.state.CompareAndSwap(closeoutPending, closeoutArmed) {
		c.log.Warn("close-out already armed or fired; ignoring arm")
		return
	}
	d := deadline.Sub(c.clk.Now())
	if d < 0 {
		d = 0
	}
	timer := c.clk.NewTimer(d)
	go c.watch(ctx, timer)
}

func (c *Closeout) watch(ctx context.Context, timer clock.Timer) {
	select {
	case <-timer.C():
		_, err := c.fire(ctx, core.CauseDeadline)
		if err != nil {
			c.log.WithError(err).Error("deadline close-out failed")
		}
	case <-c.disarm:
		timer.Stop()
	case <-ctx.Done():
		timer.Stop()
	}
}

// FireNow triggers an early close-out ("end now" command) and returns the
// final result.
func (c *Closeout) FireNow(ctx context.Context) (core.ClosedAuctionResult, error) {
	return c.fire(ctx, core.CauseManual)
}

func (c *Closeout) fire(ctx context.Context, cause core.CloseCause) (core.ClosedAuctionResult, error) {
	if c.state.Swap(closeoutFired) == closeoutFired {
		// Not an error: the ledger close is idempotent and returns the
		// memoized result.
		c.log.WithField("cause", cause).Debug("duplicate close-out trigger")
	}
	res, err := c.proc.do(ctx, command{kind: cmdClose, cause: cause})
	if err != nil {
		return core.ClosedAuctionResult{}, err
	}
	return res.closed, nil
}

// Disarm stops the deadline watcher without firing, for cancelled
// auctions.
func (c *Closeout) Disarm() {
	if c.state.CompareAndSwap(closeoutArmed, closeoutFired) {
		close(c.disarm)
	}
}
