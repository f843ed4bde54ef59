// Package ledger simulates the DroneRegistry contract off-chain: a single
// flight counter that only ever grows by one per registration, and an
// append-only log of the events those registrations emit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"drone-flight/registry/internal/logging"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrNotFound        = errors.New("ledger: event not found")
	ErrCounterMismatch = errors.New("ledger: stored counter does not match")
)

// Store persists the counter and its event log. Commit must write both or
// neither.
type Store interface {
	Counter(ctx context.Context) (uint64, error)
	Commit(ctx context.Context, prev uint64, ev Event) error
	Events(ctx context.Context, fromID uint64, limit int) ([]Event, error)
	EventByTx(ctx context.Context, tx common.Hash) (Event, error)
}

type Options struct {
	ChainID      uint64
	Address      common.Address
	ReceiptCache int
	Now          func() time.Time
}

// Ledger serializes registrations the way the host chain orders
// transactions against one contract instance.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	counter uint64

	chainID uint64
	address common.Address
	now     func() time.Time

	sinkMu sync.RWMutex
	sinks  []EventSink

	receipts *lru.Cache[common.Hash, Event]
}

// New loads the current counter from store.
func New(ctx context.Context, store Store, opts Options) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: store is nil")
	}
	counter, err := store.Counter(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load counter: %w", err)
	}
	size := opts.ReceiptCache
	if size <= 0 {
		size = 1024
	}
	receipts, err := lru.New[common.Hash, Event](size)
	if err != nil {
		return nil, fmt.Errorf("ledger: receipt cache: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:    store,
		counter:  counter,
		chainID:  opts.ChainID,
		address:  opts.Address,
		now:      now,
		receipts: receipts,
	}, nil
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) ChainID() uint64         { return l.chainID }

// Subscribe adds a sink for events committed after this call.
func (l *Ledger) Subscribe(sink EventSink) {
	l.sinkMu.Lock()
	defer l.sinkMu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// RegisterFlight increments the counter and emits one event for registrant.
// A nil dataHash emits RegisteredFlight, otherwise FlightRegistered. When
// the store refuses the commit the counter is unchanged and nothing is
// emitted.
func (l *Ledger) RegisterFlight(ctx context.Context, registrant common.Address, dataHash *common.Hash) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.counter
	ev := newEvent(l.chainID, l.address, prev+1, registrant, dataHash, l.now())
	if err := l.store.Commit(ctx, prev, ev); err != nil {
		return Event{}, fmt.Errorf("ledger: registration reverted: %w", err)
	}
	l.counter = ev.FlightID
	l.receipts.Add(ev.TxHash, ev)

	// Sinks run under the lock so every sink sees ids in order.
	l.publish(context.WithoutCancel(ctx), ev)
	return ev, nil
}

// DroneID returns the current counter value.
func (l *Ledger) DroneID(_ context.Context) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counter
}

// Events lists events with FlightID >= fromID, oldest first.
func (l *Ledger) Events(ctx context.Context, fromID uint64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if fromID == 0 {
		fromID = 1
	}
	return l.store.Events(ctx, fromID, limit)
}

// Receipt returns the event emitted by the registration with hash tx.
func (l *Ledger) Receipt(ctx context.Context, tx common.Hash) (Event, error) {
	if ev, ok := l.receipts.Get(tx); ok {
		return ev, nil
	}
	ev, err := l.store.EventByTx(ctx, tx)
	if err != nil {
		return Event{}, err
	}
	l.receipts.Add(tx, ev)
	return ev, nil
}

func (l *Ledger) publish(ctx context.Context, ev Event) {
	l.sinkMu.RLock()
	sinks := make([]EventSink, len(l.sinks))
	copy(sinks, l.sinks)
	l.sinkMu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			logging.Warn("Event sink failed",
				"flight_id", ev.FlightID,
				"tx_hash", ev.TxHash.Hex(),
				"error", err.Error(),
			)
		}
	}
}
