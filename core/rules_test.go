package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func openView(t *testing.T) *LedgerView {
	t.Helper()
	return &LedgerView{
		Config: AuctionConfig{
			AuctionID:     uuid.New(),
			StartingPrice: decimal.NewFromInt(100),
			Increment:     decimal.NewFromInt(10),
		},
		Status:       StatusOpen,
		CurrentPrice: decimal.NewFromInt(100),
		EndDeadline:  time.Now().Add(time.Hour),
	}
}

func TestMinimumNextBid(t *testing.T) {
	v := openView(t)

	// First bid: starting price plus one increment.
	check.Equal(t, "110", MinimumNextBid(v).String())

	v.CurrentPrice = decimal.NewFromInt(150)
	check.Equal(t, "160", MinimumNextBid(v).String())
}

func TestValidateBid_AcceptsAtMinimum(t *testing.T) {
	v := openView(t)

	buyNow, rej := ValidateBid(v, decimal.NewFromInt(110), time.Now())
	check.Nil(t, rej)
	check.False(t, buyNow)
}

func TestValidateBid_BidTooLow(t *testing.T) {
	v := openView(t)
	v.CurrentPrice = decimal.NewFromInt(110)

	// Current 110, increment 10, proposed 105.
	_, rej := ValidateBid(v, decimal.NewFromInt(105), time.Now())
	assert.NotNil(t, rej)
	check.Equal(t, RejectBidTooLow, rej.Reason)
	check.Equal(t, "120", rej.MinNextBid.String())
	check.Equal(t, "minimum bid is 120.00", rej.Message)
}

func TestValidateBid_EqualToCurrentRejected(t *testing.T) {
	v := openView(t)
	v.CurrentPrice = decimal.NewFromInt(150)

	_, rej := ValidateBid(v, decimal.NewFromInt(150), time.Now())
	assert.NotNil(t, rej)
	check.Equal(t, RejectBidTooLow, rej.Reason)
}

func TestValidateBid_StatusGates(t *testing.T) {
	tests := []struct {
		status Status
		reason RejectReason
	}{
		{StatusDraft, RejectAuctionNotOpen},
		{StatusScheduled, RejectAuctionNotOpen},
		{StatusClosing, RejectAlreadyClosed},
		{StatusClosed, RejectAlreadyClosed},
		{StatusCancelled, RejectAlreadyClosed},
	}
	for _, tt := range tests {
		v := openView(t)
		v.Status = tt.status

		_, rej := ValidateBid(v, decimal.NewFromInt(500), time.Now())
		assert.NotNil(t, rej)
		check.Equal(t, tt.reason, rej.Reason)
	}
}

func TestValidateBid_TooLate(t *testing.T) {
	v := openView(t)
	v.EndDeadline = time.Now().Add(-time.Second)

	// The ledger has not formally closed, but the deadline has passed.
	_, rej := ValidateBid(v, decimal.NewFromInt(500), time.Now())
	assert.NotNil(t, rej)
	check.Equal(t, RejectTooLate, rej.Reason)
}

func TestValidateBid_ExactlyAtDeadlineAccepted(t *testing.T) {
	v := openView(t)

	_, rej := ValidateBid(v, decimal.NewFromInt(500), v.EndDeadline)
	check.Nil(t, rej)
}

func TestValidateBid_BuyNowFlag(t *testing.T) {
	v := openView(t)
	v.Config.BuyNowPrice = decimal.NewFromInt(300)

	buyNow, rej := ValidateBid(v, decimal.NewFromInt(300), time.Now())
	check.Nil(t, rej)
	check.True(t, buyNow)

	buyNow, rej = ValidateBid(v, decimal.NewFromInt(150), time.Now())
	check.Nil(t, rej)
	check.False(t, buyNow)
}

func TestValidateBid_ReserveDoesNotBlockAcceptance(t *testing.T) {
	v := openView(t)
	v.Config.ReservePrice = decimal.NewFromInt(1000)

	// Reserve affects only close-out outcome, never bid acceptance.
	_, rej := ValidateBid(v, decimal.NewFromInt(110), time.Now())
	check.Nil(t, rej)
}

func TestReserveMet(t *testing.T) {
	v := openView(t)
	check.True(t, ReserveMet(v, decimal.NewFromInt(1)))

	v.Config.ReservePrice = decimal.NewFromInt(1000)
	check.False(t, ReserveMet(v, decimal.NewFromInt(800)))
	check.True(t, ReserveMet(v, decimal.NewFromInt(1000)))
}

func TestMeetsMinimum_RoundsFloatArtifacts(t *testing.T) {
	v := openView(t)

	// 109.999999... built from a float must round to 110.00 and pass.
	amount := decimal.NewFromFloat(109.9999999)
	check.True(t, MeetsMinimum(v, amount))
}
