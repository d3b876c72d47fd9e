package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 2 // 2 decimal places for listed prices (0.01 precision)

// MinimumNextBid returns the smallest amount the auction would accept
// right now: current price plus the configured increment. The same value
// feeds both the pre-validation path and BidTooLow messages, so the two
// can never drift apart.
func MinimumNextBid(v *LedgerView) decimal.Decimal {
	return v.CurrentPrice.Add(v.Config.Increment).Round(monetaryPrecision)
}

// MeetsMinimum returns true if the proposed amount meets or exceeds the
// minimum acceptable next bid. Uses decimal arithmetic rounded to
// monetaryPrecision to avoid floating-point artifacts from callers that
// built the amount from a float.
func MeetsMinimum(v *LedgerView, amount decimal.Decimal) bool {
	return amount.Round(monetaryPrecision).GreaterThanOrEqual(MinimumNextBid(v))
}

// MeetsBuyNow returns true if a buy-now price is set and the proposed
// amount reaches it.
func MeetsBuyNow(v *LedgerView, amount decimal.Decimal) bool {
	return v.Config.HasBuyNow() &&
		amount.Round(monetaryPrecision).GreaterThanOrEqual(v.Config.BuyNowPrice)
}

// ReserveMet returns true if the auction has no reserve, or the given
// price reaches it. The reserve never blocks bid acceptance; it only
// decides whether close-out produces a winner.
func ReserveMet(v *LedgerView, price decimal.Decimal) bool {
	if !v.Config.HasReserve() {
		return true
	}
	return price.GreaterThanOrEqual(v.Config.ReservePrice)
}

// ValidateBid runs the full bid rule set against a ledger view without
// mutating anything. It is the single source of bidding rules: the ledger
// commit path calls it before applying a bid, and read-side consumers call
// it to answer "would this amount be accepted".
//
// Checks run in order: auction status, submission time against the end
// deadline, then the minimum-bid rule. On success the returned buyNow flag
// reports whether the amount reached the buy-now price; acting on it is
// the caller's policy decision, never an implicit close.
func ValidateBid(v *LedgerView, amount decimal.Decimal, submittedAt time.Time) (buyNow bool, rej *Rejection) {
	switch v.Status {
	case StatusOpen:
		// fall through to the remaining checks
	case StatusClosing, StatusClosed, StatusCancelled:
		return false, &Rejection{
			Reason:  RejectAlreadyClosed,
			Message: fmt.Sprintf("auction %s has ended", v.Config.AuctionID),
		}
	default:
		return false, &Rejection{
			Reason:  RejectAuctionNotOpen,
			Message: fmt.Sprintf("auction %s is not open for bidding (status %s)", v.Config.AuctionID, v.Status),
		}
	}

	if !v.EndDeadline.IsZero() && submittedAt.After(v.EndDeadline) {
		return false, &Rejection{
			Reason:  RejectTooLate,
			Message: fmt.Sprintf("auction %s closed to new bids at %s", v.Config.AuctionID, v.EndDeadline.UTC().Format(time.RFC3339)),
		}
	}

	if !MeetsMinimum(v, amount) {
		minNext := MinimumNextBid(v)
		return false, &Rejection{
			Reason:     RejectBidTooLow,
			Message:    fmt.Sprintf("minimum bid is %s", minNext.StringFixed(monetaryPrecision)),
			MinNextBid: minNext,
		}
	}

	return MeetsBuyNow(v, amount), nil
}
