package eventsink

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/royalbidz/bidcore/core"
)

func sampleEvents() []core.Event {
	auctionID := uuid.New()
	bidderID := uuid.New()
	at := time.Unix(1700000000, 0).UTC()
	return []core.Event{
		core.AcceptedEvent(core.AcceptedBid{
			BidID:       uuid.New(),
			AuctionID:   auctionID,
			BidderID:    bidderID,
			Amount:      decimal.NewFromInt(110),
			Sequence:    1,
			AcceptedAt:  at,
			Fingerprint: "abc",
		}),
		core.RejectedEvent(core.RejectedBid{
			AuctionID:  auctionID,
			BidderID:   uuid.New(),
			Amount:     decimal.NewFromInt(105),
			Reason:     core.RejectBidTooLow,
			Message:    "minimum bid is 120.00",
			MinNextBid: decimal.NewFromInt(120),
			RejectedAt: at,
		}),
		core.ClosedEvent(core.ClosedAuctionResult{
			AuctionID:     auctionID,
			WinnerID:      bidderID,
			FinalPrice:    decimal.NewFromInt(110),
			Reason:        core.CloseReasonSold,
			ClosedAt:      at,
			FinalSequence: 1,
			Fingerprint:   "def",
		}),
	}
}

func TestJournal_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	j := NewJournal(&buf)

	events := sampleEvents()
	for _, ev := range events {
		j.Publish(ev)
	}
	assert.NoError(t, j.Err())

	records, err := ReadJournal(&buf)
	assert.NoError(t, err)
	assert.Equal(t, len(events), len(records))

	for i, rec := range records {
		check.Equal(t, uint64(i+1), rec.Seq)
		check.Equal(t, events[i].Kind, rec.Event.Kind)
	}

	// Spot-check payload fidelity through the CBOR round trip.
	acc := records[0].Event.Accepted
	assert.NotNil(t, acc)
	check.Equal(t, events[0].Accepted.BidID, acc.BidID)
	check.True(t, acc.Amount.Equal(decimal.NewFromInt(110)))
	check.Equal(t, "abc", acc.Fingerprint)

	rej := records[1].Event.Rejected
	assert.NotNil(t, rej)
	check.Equal(t, core.RejectBidTooLow, rej.Reason)
	check.True(t, rej.MinNextBid.Equal(decimal.NewFromInt(120)))

	closed := records[2].Event.Closed
	assert.NotNil(t, closed)
	check.Equal(t, core.CloseReasonSold, closed.Reason)
	check.True(t, closed.ClosedAt.Equal(events[2].Closed.ClosedAt))
}

func TestJournal_EmptyStream(t *testing.T) {
	records, err := ReadJournal(bytes.NewReader(nil))
	assert.NoError(t, err)
	check.Equal(t, 0, len(records))
}

func TestMemory_RecordsInOrder(t *testing.T) {
	m := NewMemory()
	events := sampleEvents()
	for _, ev := range events {
		m.Publish(ev)
	}

	got := m.Events()
	assert.Equal(t, len(events), len(got))
	for i := range events {
		check.Equal(t, events[i].Kind, got[i].Kind)
	}

	accepted := m.ByKind(core.EventBidAccepted)
	check.Equal(t, 1, len(accepted))
}

func TestTee_FansOut(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	sink := Tee(a, b)

	for _, ev := range sampleEvents() {
		sink.Publish(ev)
	}
	check.Equal(t, 3, len(a.Events()))
	check.Equal(t, 3, len(b.Events()))
}
