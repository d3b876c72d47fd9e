package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an auction ledger.
type Status int

const (
	StatusDraft Status = iota
	StatusScheduled
	StatusOpen
	StatusClosing
	StatusClosed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusScheduled:
		return "scheduled"
	case StatusOpen:
		return "open"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further bids can ever be accepted.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// AuctionConfig holds the immutable pricing terms of one auction, fixed at
// creation. ReservePrice and BuyNowPrice are optional; zero means unset.
type AuctionConfig struct {
	AuctionID     uuid.UUID       `json:"auction_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	ReservePrice  decimal.Decimal `json:"reserve_price"`
	BuyNowPrice   decimal.Decimal `json:"buy_now_price"`
	Increment     decimal.Decimal `json:"increment"`
}

// HasReserve reports whether a reserve price was set.
func (c AuctionConfig) HasReserve() bool { return c.ReservePrice.IsPositive() }

// HasBuyNow reports whether a buy-now price was set.
func (c AuctionConfig) HasBuyNow() bool { return c.BuyNowPrice.IsPositive() }

// BidRequest is a single bid submission. It is consumed once by the
// engine and never stored by the core.
type BidRequest struct {
	AuctionID   uuid.UUID       `json:"auction_id"`
	BidderID    uuid.UUID       `json:"bidder_id"`
	Amount      decimal.Decimal `json:"amount"`
	SubmittedAt time.Time       `json:"submitted_at"`

	// IsAutomatic marks a proxy bid: the engine re-raises on the
	// bidder's behalf up to MaxAutoBidAmount.
	IsAutomatic      bool            `json:"is_automatic,omitempty"`
	MaxAutoBidAmount decimal.Decimal `json:"max_auto_bid_amount,omitempty"`
}

// AcceptedBid is the outcome of a successful bid commit. Sequence is the
// authoritative ordering key for the auction's bid history.
type AcceptedBid struct {
	BidID       uuid.UUID       `json:"bid_id"`
	AuctionID   uuid.UUID       `json:"auction_id"`
	BidderID    uuid.UUID       `json:"bidder_id"`
	Amount      decimal.Decimal `json:"amount"`
	Sequence    uint64          `json:"sequence"`
	AcceptedAt  time.Time       `json:"accepted_at"`
	AutoRaised  bool            `json:"auto_raised,omitempty"`
	BuyNow      bool            `json:"buy_now,omitempty"`
	Fingerprint string          `json:"fingerprint"`
}

// RejectedBid describes a bid the engine turned away, with the reason and
// the user-facing message the caller surfaces directly.
type RejectedBid struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	BidderID   uuid.UUID       `json:"bidder_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     RejectReason    `json:"reason"`
	Message    string          `json:"message"`
	MinNextBid decimal.Decimal `json:"min_next_bid,omitempty"`
	RejectedAt time.Time       `json:"rejected_at"`
}

// CloseCause is what triggered a close-out attempt.
type CloseCause int

const (
	CauseDeadline CloseCause = iota
	CauseManual
	CauseBuyNow
	CauseCancel
)

func (c CloseCause) String() string {
	switch c {
	case CauseDeadline:
		return "deadline"
	case CauseManual:
		return "manual"
	case CauseBuyNow:
		return "buy_now"
	case CauseCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// CloseReason is the business outcome reported on a closed auction.
type CloseReason string

const (
	CloseReasonSold          CloseReason = "sold"
	CloseReasonBuyNow        CloseReason = "buy_now"
	CloseReasonNoBids        CloseReason = "no_bids"
	CloseReasonReserveNotMet CloseReason = "reserve_not_met"
	CloseReasonCancelled     CloseReason = "cancelled"
)

// ClosedAuctionResult is computed exactly once at close-out and memoized;
// repeated close attempts return the identical value. WinnerID is uuid.Nil
// when the auction produced no winner (no bids, reserve not met, or
// cancelled).
type ClosedAuctionResult struct {
	AuctionID     uuid.UUID       `json:"auction_id"`
	WinnerID      uuid.UUID       `json:"winner_id,omitempty"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	Reason        CloseReason     `json:"reason"`
	ClosedAt      time.Time       `json:"closed_at"`
	FinalSequence uint64          `json:"final_sequence"`
	Fingerprint   string          `json:"fingerprint"`
}

// HasWinner reports whether the auction produced a winner.
func (r ClosedAuctionResult) HasWinner() bool { return r.WinnerID != uuid.Nil }

// BidRecord is one accepted bid in a ledger view's history.
type BidRecord struct {
	Sequence   uint64          `json:"sequence"`
	BidderID   uuid.UUID       `json:"bidder_id"`
	Amount     decimal.Decimal `json:"amount"`
	AcceptedAt time.Time       `json:"accepted_at"`
	AutoRaised bool            `json:"auto_raised,omitempty"`
}

// LedgerView is an immutable snapshot of one auction's state. Views are
// published whole on every mutation; holders may read them from any
// goroutine and must never see a partially applied change.
type LedgerView struct {
	Config AuctionConfig `json:"config"`
	Status Status        `json:"status"`

	CurrentPrice    decimal.Decimal `json:"current_price"`
	LeadingBidderID uuid.UUID       `json:"leading_bidder_id,omitempty"`
	BidSequence     uint64          `json:"bid_sequence"`

	StartTime   time.Time `json:"start_time,omitempty"`
	OpenedAt    time.Time `json:"opened_at,omitempty"`
	EndDeadline time.Time `json:"end_deadline,omitempty"`

	AcceptedCount uint64 `json:"accepted_count"`
	RejectedCount uint64 `json:"rejected_count"`

	// History holds the most recent accepted bids in sequence order. The
	// ledger bounds its length; the event stream is the complete record.
	History []BidRecord `json:"history,omitempty"`

	// Set exactly once at close-out, nil before.
	Closed *ClosedAuctionResult `json:"closed,omitempty"`
}

// HasLeader reports whether at least one bid has been accepted.
func (v *LedgerView) HasLeader() bool { return v.LeadingBidderID != uuid.Nil }
