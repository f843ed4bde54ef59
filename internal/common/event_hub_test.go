package common

import (
	"context"
	"testing"
	"time"

	"drone-flight/registry/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_FanOut(t *testing.T) {
	hub := NewEventHub(4)
	a, unsubA := hub.Subscribe()
	b, unsubB := hub.Subscribe()
	defer unsubB()
	assert.Equal(t, 2, hub.Subscribers())

	require.NoError(t, hub.Publish(context.Background(), ledger.Event{FlightID: 1}))

	for _, ch := range []<-chan ledger.Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, uint64(1), ev.FlightID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	unsubA()
	unsubA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers())
}

func TestEventHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewEventHub(1)
	ch, unsub := hub.Subscribe()
	defer unsub()

	for i := 1; i <= 5; i++ {
		require.NoError(t, hub.Publish(context.Background(), ledger.Event{FlightID: uint64(i)}))
	}
	ev := <-ch
	assert.Equal(t, uint64(1), ev.FlightID)
}
