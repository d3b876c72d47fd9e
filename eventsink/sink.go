// Package eventsink delivers ordered engine events to the surrounding
// application: broadcast hubs, persistence, metrics. Sinks must not block
// for long; the publishing processor is the auction's single writer.
package eventsink

import (
	"sync"

	"github.com/royalbidz/bidcore/core"
)

// Sink receives engine events. Publish is called from each auction's
// processor goroutine, so events for one auction arrive in the order the
// engine applied them.
type Sink interface {
	Publish(ev core.Event)
}

// Func adapts a plain function to a Sink.
type Func func(core.Event)

func (f Func) Publish(ev core.Event) { f(ev) }

// Discard drops every event.
var Discard Sink = Func(func(core.Event) {})

// Tee fans every event out to each sink in order.
func Tee(sinks ...Sink) Sink {
	return Func(func(ev core.Event) {
		for _, s := range sinks {
			s.Publish(ev)
		}
	})
}

// Memory records every published event. Used by tests and the simulator.
type Memory struct {
	mu     sync.Mutex
	events []core.Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(ev core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []core.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByKind returns published events of one kind, in publish order.
func (m *Memory) ByKind(kind core.EventKind) []core.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Event, 0, len(m.events))
	for _, ev := range m.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
