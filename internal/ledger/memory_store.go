package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryStore keeps the ledger in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	counter uint64
	events  []Event
	byTx    map[common.Hash]int

	// CommitHook, when set, runs before a commit and aborts it on error.
	CommitHook func(ev Event) error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byTx: make(map[common.Hash]int)}
}

func (s *MemoryStore) Counter(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counter, nil
}

func (s *MemoryStore) Commit(ctx context.Context, prev uint64, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counter != prev {
		return ErrCounterMismatch
	}
	if s.CommitHook != nil {
		if err := s.CommitHook(ev); err != nil {
			return err
		}
	}
	s.counter = ev.FlightID
	s.byTx[ev.TxHash] = len(s.events)
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryStore) Events(_ context.Context, fromID uint64, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].FlightID >= fromID
	})
	end := start + limit
	if end > len(s.events) {
		end = len(s.events)
	}
	out := make([]Event, end-start)
	copy(out, s.events[start:end])
	return out, nil
}

func (s *MemoryStore) EventByTx(_ context.Context, tx common.Hash) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byTx[tx]
	if !ok {
		return Event{}, ErrNotFound
	}
	return s.events[idx], nil
}
