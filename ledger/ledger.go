// Package ledger holds the authoritative in-memory state for a single
// auction. A Ledger is owned for writes by exactly one engine processor;
// readers get immutable snapshots and never block the writer.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/royalbidz/bidcore/core"
)

// ErrAlreadyClosed is returned by Cancel on a ledger that already reached
// Closed; a closed ledger is immutable.
var ErrAlreadyClosed = errors.New("auction already closed")

// historyCap bounds the bid history carried on a view. The view keeps the
// most recent historyCap accepted bids; the full record lives in the event
// stream. Bounding it keeps the per-bid copy cost constant on long
// auctions.
const historyCap = 1024

// ErrBadTransition is returned for lifecycle commands issued against the
// wrong status (opening a closed auction, scheduling an open one).
var ErrBadTransition = errors.New("invalid status transition")

// Ledger is the single source of truth for one auction. Mutating methods
// must only be called by the owning processor; Snapshot is safe from any
// goroutine and is lock-free.
//
// Every mutation publishes a fresh immutable view, so a snapshot taken at
// any instant is internally consistent.
type Ledger struct {
	mu   sync.Mutex
	view atomic.Pointer[core.LedgerView]
}

// New creates a ledger in Draft status from immutable auction terms.
func New(cfg core.AuctionConfig) (*Ledger, error) {
	if cfg.AuctionID == uuid.Nil {
		return nil, errors.New("auction id is required")
	}
	if !cfg.Increment.IsPositive() {
		return nil, fmt.Errorf("increment must be positive, got %s", cfg.Increment)
	}
	if cfg.StartingPrice.IsNegative() {
		return nil, fmt.Errorf("starting price must be non-negative, got %s", cfg.StartingPrice)
	}
	if cfg.ReservePrice.IsNegative() || cfg.BuyNowPrice.IsNegative() {
		return nil, errors.New("reserve and buy-now prices must be non-negative")
	}

	l := &Ledger{}
	l.view.Store(&core.LedgerView{
		Config:       cfg,
		Status:       core.StatusDraft,
		CurrentPrice: cfg.StartingPrice,
	})
	return l, nil
}

// Snapshot returns the current immutable view. Never blocks, never
// observes a partially applied mutation.
func (l *Ledger) Snapshot() *core.LedgerView {
	return l.view.Load()
}

// Schedule moves a Draft ledger to Scheduled with the planned start time.
func (l *Ledger) Schedule(startTime time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.view.Load()
	if v.Status != core.StatusDraft {
		return fmt.Errorf("%w: cannot schedule auction in status %s", ErrBadTransition, v.Status)
	}
	next := l.copyView(v)
	next.Status = core.StatusScheduled
	next.StartTime = startTime
	l.publish(v, next)
	return nil
}

// Open moves a Draft or Scheduled ledger to Open and fixes the end
// deadline. The deadline is immutable afterwards.
func (l *Ledger) Open(deadline, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.view.Load()
	if v.Status != core.StatusDraft && v.Status != core.StatusScheduled {
		return fmt.Errorf("%w: cannot open auction in status %s", ErrBadTransition, v.Status)
	}
	if !deadline.After(now) {
		return fmt.Errorf("end deadline %s is not in the future", deadline.UTC().Format(time.RFC3339))
	}
	next := l.copyView(v)
	next.Status = core.StatusOpen
	next.OpenedAt = now
	next.EndDeadline = deadline
	l.publish(v, next)
	return nil
}

// TryAcceptBid is the only mutating entry point for bids. It validates the
// proposed amount with the shared rule set and, on success, advances the
// current price, leading bidder and bid sequence in one atomic step.
// The returned AcceptedBid's BuyNow flag reports that the amount reached
// the buy-now price; the ledger itself never closes on it.
//
// Rejections also publish a view (rejected counter), but never consume a
// sequence number.
func (l *Ledger) TryAcceptBid(bidderID uuid.UUID, amount decimal.Decimal, submittedAt time.Time, autoRaised bool) (core.AcceptedBid, *core.Rejection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.view.Load()
	buyNow, rej := core.ValidateBid(v, amount, submittedAt)
	if rej != nil {
		// A terminal ledger never mutates again; rejections against it
		// are visible only in the event stream.
		if !v.Status.Terminal() {
			next := l.copyView(v)
			next.RejectedCount++
			l.publish(v, next)
		}
		return core.AcceptedBid{}, rej
	}

	next := l.copyView(v)
	next.BidSequence = v.BidSequence + 1
	next.CurrentPrice = amount
	next.LeadingBidderID = bidderID
	next.AcceptedCount++
	next.History = append(next.History, core.BidRecord{
		Sequence:   next.BidSequence,
		BidderID:   bidderID,
		Amount:     amount,
		AcceptedAt: submittedAt,
		AutoRaised: autoRaised,
	})
	if len(next.History) > historyCap {
		next.History = next.History[len(next.History)-historyCap:]
	}
	l.publish(v, next)

	return core.AcceptedBid{
		BidID:       uuid.New(),
		AuctionID:   v.Config.AuctionID,
		BidderID:    bidderID,
		Amount:      amount,
		Sequence:    next.BidSequence,
		AcceptedAt:  submittedAt,
		AutoRaised:  autoRaised,
		BuyNow:      buyNow,
		Fingerprint: core.BidFingerprint(v.Config.AuctionID, next.BidSequence, bidderID, amount, submittedAt),
	}, nil
}

// Close transitions the ledger to Closed exactly once and computes the
// final outcome: the leading bidder wins at the current price unless there
// were no bids or a set reserve was not met. The result is memoized; every
// later call returns the identical value with performed=false, so racing
// close triggers are harmless.
func (l *Ledger) Close(now time.Time, cause core.CloseCause) (core.ClosedAuctionResult, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.view.Load()
	if v.Closed != nil {
		return *v.Closed, false
	}

	// Transient Closing status: a snapshot taken during winner
	// determination already rejects bids.
	closing := l.copyView(v)
	closing.Status = core.StatusClosing
	l.publish(v, closing)

	result := core.ClosedAuctionResult{
		AuctionID:     v.Config.AuctionID,
		FinalPrice:    v.CurrentPrice,
		ClosedAt:      now,
		FinalSequence: v.BidSequence,
	}
	switch {
	case cause == core.CauseCancel:
		result.Reason = core.CloseReasonCancelled
	case !v.HasLeader():
		result.Reason = core.CloseReasonNoBids
	case !core.ReserveMet(v, v.CurrentPrice):
		// The leading bidder stays on the view for audit, but there is
		// no winner.
		result.Reason = core.CloseReasonReserveNotMet
	case cause == core.CauseBuyNow:
		result.WinnerID = v.LeadingBidderID
		result.Reason = core.CloseReasonBuyNow
	default:
		result.WinnerID = v.LeadingBidderID
		result.Reason = core.CloseReasonSold
	}
	result.Fingerprint = core.CloseoutFingerprint(
		result.AuctionID, result.Reason, result.WinnerID, result.FinalPrice, result.FinalSequence, result.ClosedAt)

	final := l.copyView(closing)
	if cause == core.CauseCancel {
		final.Status = core.StatusCancelled
	} else {
		final.Status = core.StatusClosed
	}
	final.Closed = &result
	l.publish(closing, final)
	return result, true
}

// Cancel forces the ledger to Cancelled from any non-Closed status. A
// second cancel is absorbed (Cancelled is the terminal state either way);
// cancelling a Closed ledger fails with ErrAlreadyClosed.
func (l *Ledger) Cancel(now time.Time) (core.ClosedAuctionResult, error) {
	v := l.view.Load()
	if v.Status == core.StatusClosed {
		return core.ClosedAuctionResult{}, fmt.Errorf("cannot cancel auction %s: %w", v.Config.AuctionID, ErrAlreadyClosed)
	}
	result, _ := l.Close(now, core.CauseCancel)
	if result.Reason != core.CloseReasonCancelled {
		// Lost a race against a regular close-out.
		return result, fmt.Errorf("cannot cancel auction %s: %w", v.Config.AuctionID, ErrAlreadyClosed)
	}
	return result, nil
}

// copyView duplicates a view so the published previous one stays
// immutable. History is copied into a fresh slice so appends by the copy
// never write into memory a snapshot holder can see; its length is
// bounded by historyCap.
func (l *Ledger) copyView(v *core.LedgerView) *core.LedgerView {
	next := *v
	next.History = make([]core.BidRecord, len(v.History), len(v.History)+1)
	copy(next.History, v.History)
	return &next
}

// publish swaps in the next view after guarding the invariants no caller
// input can legitimately break. A violation here means corrupted engine
// state, not bad user input.
func (l *Ledger) publish(prev, next *core.LedgerView) {
	if next.CurrentPrice.LessThan(prev.CurrentPrice) {
		panic(fmt.Sprintf("ledger %s: current price regressed %s -> %s",
			next.Config.AuctionID, prev.CurrentPrice, next.CurrentPrice))
	}
	if next.BidSequence < prev.BidSequence || next.BidSequence > prev.BidSequence+1 {
		panic(fmt.Sprintf("ledger %s: bid sequence gap %d -> %d",
			next.Config.AuctionID, prev.BidSequence, next.BidSequence))
	}
	if prev.Status.Terminal() && next.Status != prev.Status {
		panic(fmt.Sprintf("ledger %s: mutation after terminal status %s",
			next.Config.AuctionID, prev.Status))
	}
	l.view.Store(next)
}
