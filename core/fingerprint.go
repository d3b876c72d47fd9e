package core

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BidFingerprint computes the audit fingerprint recorded on every accepted
// bid. Downstream consumers (persistence, dispute handling) can recompute
// it from the event fields to verify the recorded history.
//
// Formula: SHA256(auction_id + "|" + sequence + "|" + bidder_id + "|" +
// amount + "|" + accepted_at_unixnano)
//
// The amount is formatted to exactly monetaryPrecision decimal places so
// the preimage is independent of how the decimal is represented in memory.
func BidFingerprint(auctionID uuid.UUID, sequence uint64, bidderID uuid.UUID, amount decimal.Decimal, acceptedAt time.Time) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%d",
		auctionID, sequence, bidderID, amount.StringFixed(monetaryPrecision), acceptedAt.UnixNano())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// CloseoutFingerprint computes the audit fingerprint of a close-out
// result.
//
// Formula: SHA256(auction_id + "|" + reason + "|" + winner_id + "|" +
// final_price + "|" + final_sequence + "|" + closed_at_unixnano)
func CloseoutFingerprint(auctionID uuid.UUID, reason CloseReason, winnerID uuid.UUID, finalPrice decimal.Decimal, finalSequence uint64, closedAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		auctionID, reason, winnerID, finalPrice.StringFixed(monetaryPrecision), finalSequence, closedAt.UnixNano())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
