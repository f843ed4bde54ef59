package common

import (
	"context"
	"sync"

	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/logging"
)

// EventHub fans ledger events out to live subscribers. A subscriber whose
// buffer is full misses the event rather than stalling the ledger.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[chan ledger.Event]struct{}
	buffer int
}

var _ ledger.EventSink = (*EventHub)(nil)

func NewEventHub(buffer int) *EventHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &EventHub{subs: make(map[chan ledger.Event]struct{}), buffer: buffer}
}

func (h *EventHub) Publish(_ context.Context, ev ledger.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			logging.Warn("Dropping event for slow subscriber", "flight_id", ev.FlightID)
		}
	}
	return nil
}

// Subscribe returns a channel of events and a function that unsubscribes
// and closes it.
func (h *EventHub) Subscribe() (<-chan ledger.Event, func()) {
	ch := make(chan ledger.Event, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
