package core

import "github.com/google/uuid"

// EventKind discriminates the event union.
type EventKind string

const (
	EventBidAccepted   EventKind = "bid_accepted"
	EventBidRejected   EventKind = "bid_rejected"
	EventAuctionClosed EventKind = "auction_closed"
)

// Event is one ordered engine event. Exactly one of the payload fields is
// set, matching Kind. Events for a single auction are emitted in the order
// the engine applied them; cross-auction ordering is unspecified.
type Event struct {
	Kind     EventKind            `json:"kind"`
	Accepted *AcceptedBid         `json:"accepted,omitempty"`
	Rejected *RejectedBid         `json:"rejected,omitempty"`
	Closed   *ClosedAuctionResult `json:"closed,omitempty"`
}

// AuctionID returns the auction the event belongs to.
func (e Event) AuctionID() uuid.UUID {
	switch e.Kind {
	case EventBidAccepted:
		return e.Accepted.AuctionID
	case EventBidRejected:
		return e.Rejected.AuctionID
	case EventAuctionClosed:
		return e.Closed.AuctionID
	default:
		return uuid.Nil
	}
}

// AcceptedEvent wraps an accepted bid as an event.
func AcceptedEvent(b AcceptedBid) Event {
	return Event{Kind: EventBidAccepted, Accepted: &b}
}

// RejectedEvent wraps a rejected bid as an event.
func RejectedEvent(r RejectedBid) Event {
	return Event{Kind: EventBidRejected, Rejected: &r}
}

// ClosedEvent wraps a close-out result as an event.
func ClosedEvent(r ClosedAuctionResult) Event {
	return Event{Kind: EventAuctionClosed, Closed: &r}
}
