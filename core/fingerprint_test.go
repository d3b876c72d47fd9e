package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestBidFingerprint_Deterministic(t *testing.T) {
	auctionID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	bidderID := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	at := time.Unix(1700000000, 0).UTC()

	a := BidFingerprint(auctionID, 7, bidderID, decimal.NewFromInt(150), at)
	b := BidFingerprint(auctionID, 7, bidderID, decimal.NewFromInt(150), at)
	check.Equal(t, a, b)
	check.Equal(t, 64, len(a)) // hex-encoded SHA-256
}

func TestBidFingerprint_AmountRepresentationIndependent(t *testing.T) {
	auctionID := uuid.New()
	bidderID := uuid.New()
	at := time.Now()

	// 150 and 150.00 are the same money; the preimage must agree.
	a := BidFingerprint(auctionID, 1, bidderID, decimal.NewFromInt(150), at)
	b := BidFingerprint(auctionID, 1, bidderID, decimal.RequireFromString("150.00"), at)
	check.Equal(t, a, b)
}

func TestBidFingerprint_SensitiveToEveryField(t *testing.T) {
	auctionID := uuid.New()
	bidderID := uuid.New()
	at := time.Unix(1700000000, 0)

	base := BidFingerprint(auctionID, 1, bidderID, decimal.NewFromInt(150), at)

	check.NotEqual(t, base, BidFingerprint(uuid.New(), 1, bidderID, decimal.NewFromInt(150), at))
	check.NotEqual(t, base, BidFingerprint(auctionID, 2, bidderID, decimal.NewFromInt(150), at))
	check.NotEqual(t, base, BidFingerprint(auctionID, 1, uuid.New(), decimal.NewFromInt(150), at))
	check.NotEqual(t, base, BidFingerprint(auctionID, 1, bidderID, decimal.NewFromInt(151), at))
	check.NotEqual(t, base, BidFingerprint(auctionID, 1, bidderID, decimal.NewFromInt(150), at.Add(time.Nanosecond)))
}

func TestCloseoutFingerprint_Deterministic(t *testing.T) {
	auctionID := uuid.New()
	winnerID := uuid.New()
	at := time.Unix(1700000000, 0)

	a := CloseoutFingerprint(auctionID, CloseReasonSold, winnerID, decimal.NewFromInt(800), 12, at)
	b := CloseoutFingerprint(auctionID, CloseReasonSold, winnerID, decimal.NewFromInt(800), 12, at)
	check.Equal(t, a, b)
	check.NotEqual(t, a, CloseoutFingerprint(auctionID, CloseReasonReserveNotMet, winnerID, decimal.NewFromInt(800), 12, at))
}
