package core

import "github.com/shopspring/decimal"

// RejectReason classifies why a bid was turned away. Rejections are
// expected, frequent outcomes: they are returned as values and surfaced to
// the bidder, never raised as errors inside the engine.
type RejectReason string

const (
	RejectBidTooLow      RejectReason = "bid_too_low"
	RejectTooLate        RejectReason = "too_late"
	RejectAuctionNotOpen RejectReason = "auction_not_open"
	RejectAlreadyClosed  RejectReason = "already_closed"
)

// Rejection is a typed, user-facing bid rejection. Message is always
// actionable; for RejectBidTooLow, MinNextBid carries the smallest amount
// that would have been accepted.
type Rejection struct {
	Reason     RejectReason
	Message    string
	MinNextBid decimal.Decimal
}

// Error makes a Rejection usable as an error at the engine boundary.
// Callers are expected to branch on Reason rather than the string.
func (r *Rejection) Error() string { return r.Message }
