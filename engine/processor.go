// Package engine serializes bid traffic: one goroutine per auction owns
// that auction's ledger, evaluates submissions in FIFO order, runs the
// proxy re-raise algorithm, and emits ordered events. Unrelated auctions
// proceed concurrently; snapshot readers never touch the goroutine.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/royalbidz/bidcore/clock"
	"github.com/royalbidz/bidcore/core"
	"github.com/royalbidz/bidcore/eventsink"
	"github.com/royalbidz/bidcore/ledger"
)

// ErrStopped is returned for commands issued after the engine shut down.
var ErrStopped = errors.New("engine stopped")

type cmdKind int

const (
	cmdBid cmdKind = iota
	cmdSchedule
	cmdOpen
	cmdClose
	cmdCancel
)

type command struct {
	kind      cmdKind
	req       core.BidRequest // cmdBid
	startTime time.Time       // cmdSchedule
	deadline  time.Time       // cmdOpen
	cause     core.CloseCause // cmdClose
	resp      chan cmdResult
}

type cmdResult struct {
	accepted  core.AcceptedBid
	rejection *core.Rejection
	closed    core.ClosedAuctionResult
	err       error
}

// Processor is the single writer for one auction's ledger. All mutation
// flows through its command channel; evaluation order is submission order.
type Processor struct {
	auctionID uuid.UUID
	ledger    *ledger.Ledger
	clk       clock.Clock
	sink      eventsink.Sink
	log       *logrus.Entry

	cmds chan command
	done chan struct{}

	closeOnBuyNow bool

	// proxyMax tracks the standing maximum for each bidder with an
	// active proxy bid. Touched only by the run goroutine.
	proxyMax map[uuid.UUID]decimal.Decimal
}

func newProcessor(l *ledger.Ledger, clk clock.Clock, sink eventsink.Sink, log *logrus.Logger, opts Options) *Processor {
	id := l.Snapshot().Config.AuctionID
	return &Processor{
		auctionID:     id,
		ledger:        l,
		clk:           clk,
		sink:          sink,
		log:           log.WithField("auction_id", id),
		cmds:          make(chan command, opts.CommandBuffer),
		done:          make(chan struct{}),
		closeOnBuyNow: opts.CloseOnBuyNow,
		proxyMax:      make(map[uuid.UUID]decimal.Decimal),
	}
}

// Ledger exposes the read path; snapshots are lock-free.
func (p *Processor) Ledger() *ledger.Ledger { return p.ledger }

func (p *Processor) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case cmd := <-p.cmds:
			cmd.resp <- p.handle(cmd)
		case <-ctx.Done():
			return
		}
	}
}

// do enqueues a command and waits for its serialized evaluation. The
// caller may abandon the wait via ctx; evaluation still runs to completion
// and the result is discarded (resp is buffered, the run loop never
// blocks on it).
func (p *Processor) do(ctx context.Context, cmd command) (cmdResult, error) {
	if err := ctx.Err(); err != nil {
		return cmdResult{}, err
	}
	cmd.resp = make(chan cmdResult, 1)
	select {
	case p.cmds <- cmd:
	case <-ctx.Done():
		return cmdResult{}, ctx.Err()
	case <-p.done:
		return cmdResult{}, ErrStopped
	}
	select {
	case res := <-cmd.resp:
		return res, res.err
	case <-ctx.Done():
		return cmdResult{}, ctx.Err()
	case <-p.done:
		return cmdResult{}, ErrStopped
	}
}

func (p *Processor) handle(cmd command) cmdResult {
	switch cmd.kind {
	case cmdBid:
		return p.handleBid(cmd.req)
	case cmdSchedule:
		return cmdResult{err: p.ledger.Schedule(cmd.startTime)}
	case cmdOpen:
		err := p.ledger.Open(cmd.deadline, p.clk.Now())
		if err == nil {
			p.log.WithField("deadline", cmd.deadline.UTC().Format(time.RFC3339)).Info("auction opened")
		}
		return cmdResult{err: err}
	case cmdClose:
		return cmdResult{closed: p.closeOut(cmd.cause)}
	case cmdCancel:
		return p.handleCancel()
	default:
		return cmdResult{err: errors.New("unknown command")}
	}
}

func (p *Processor) handleBid(req core.BidRequest) cmdResult {
	now := p.clk.Now()
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = now
	}

	prev := p.ledger.Snapshot()
	acc, rej := p.ledger.TryAcceptBid(req.BidderID, req.Amount, req.SubmittedAt, false)
	if rej != nil {
		p.sink.Publish(core.RejectedEvent(core.RejectedBid{
			AuctionID:  p.auctionID,
			BidderID:   req.BidderID,
			Amount:     req.Amount,
			Reason:     rej.Reason,
			Message:    rej.Message,
			MinNextBid: rej.MinNextBid,
			RejectedAt: now,
		}))
		p.log.WithFields(logrus.Fields{
			"bidder_id": req.BidderID,
			"amount":    req.Amount,
			"reason":    rej.Reason,
		}).Debug("bid rejected")
		return cmdResult{rejection: rej}
	}

	// A proxy bid only helps if its cap exceeds the visible amount.
	if req.IsAutomatic && req.MaxAutoBidAmount.GreaterThan(acc.Amount) {
		p.proxyMax[req.BidderID] = req.MaxAutoBidAmount
	}

	p.sink.Publish(core.AcceptedEvent(acc))
	p.log.WithFields(logrus.Fields{
		"bidder_id": acc.BidderID,
		"amount":    acc.Amount,
		"sequence":  acc.Sequence,
	}).Info("bid accepted")

	// Buy-now is an immediate win: the close-out fires before any
	// standing proxy gets a chance to re-raise past the buy-now bidder.
	if acc.BuyNow && p.closeOnBuyNow {
		p.closeOut(core.CauseBuyNow)
		return cmdResult{accepted: acc}
	}

	p.runProxyChain(prev.LeadingBidderID, req.SubmittedAt)
	return cmdResult{accepted: acc}
}

// runProxyChain re-raises displaced proxy bidders until the standing
// leader cannot be outbid. Each re-raise is a visible accepted bid of one
// increment over the current price, and consumes its own sequence number,
// all within the same serialized step as the bid that triggered it.
//
// When two proxies compete the chain ping-pongs until the lower cap is
// exhausted, leaving the higher-capped bidder at the loser's cap plus one
// increment.
func (p *Processor) runProxyChain(displaced uuid.UUID, at time.Time) {
	for {
		v := p.ledger.Snapshot()
		if displaced == uuid.Nil || displaced == v.LeadingBidderID {
			return
		}
		max, ok := p.proxyMax[displaced]
		if !ok {
			return
		}
		reRaise := core.MinimumNextBid(v)
		if max.LessThan(reRaise) {
			delete(p.proxyMax, displaced)
			p.log.WithFields(logrus.Fields{
				"bidder_id": displaced,
				"max":       max,
				"needed":    reRaise,
			}).Debug("proxy bidder outbid")
			return
		}

		nextDisplaced := v.LeadingBidderID
		acc, rej := p.ledger.TryAcceptBid(displaced, reRaise, at, true)
		if rej != nil {
			// The window closed mid-chain; nothing left to re-raise.
			return
		}
		p.sink.Publish(core.AcceptedEvent(acc))
		p.log.WithFields(logrus.Fields{
			"bidder_id": acc.BidderID,
			"amount":    acc.Amount,
			"sequence":  acc.Sequence,
		}).Info("proxy bid re-raised")
		displaced = nextDisplaced
	}
}

// closeOut drives the ledger's idempotent close and emits AuctionClosed
// exactly once. Duplicate triggers (deadline racing a manual close) are
// logged and absorbed.
func (p *Processor) closeOut(cause core.CloseCause) core.ClosedAuctionResult {
	result, performed := p.ledger.Close(p.clk.Now(), cause)
	if !performed {
		p.log.WithField("cause", cause).Debug("duplicate close-out absorbed")
		return result
	}
	p.sink.Publish(core.ClosedEvent(result))
	p.log.WithFields(logrus.Fields{
		"reason":      result.Reason,
		"winner_id":   result.WinnerID,
		"final_price": result.FinalPrice,
	}).Info("auction closed")
	return result
}

func (p *Processor) handleCancel() cmdResult {
	result, performed := p.ledger.Close(p.clk.Now(), core.CauseCancel)
	if performed {
		p.sink.Publish(core.ClosedEvent(result))
		p.log.Info("auction cancelled")
		return cmdResult{closed: result}
	}
	if result.Reason == core.CloseReasonCancelled {
		// Already cancelled; absorbing.
		return cmdResult{closed: result}
	}
	return cmdResult{closed: result, err: ledger.ErrAlreadyClosed}
}
