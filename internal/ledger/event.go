package ledger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	EventRegisteredFlight = "RegisteredFlight"
	EventFlightRegistered = "FlightRegistered"
)

// Event is one entry of the append-only registration log.
type Event struct {
	Name       string         `json:"event"`
	FlightID   uint64         `json:"flightId"`
	Registrant common.Address `json:"registrant"`
	DataHash   *common.Hash   `json:"dataHash,omitempty"`
	Topic      common.Hash    `json:"topic"`
	TxHash     common.Hash    `json:"txHash"`
	Contract   common.Address `json:"contract"`
	ChainID    uint64         `json:"chainId"`
	Timestamp  time.Time      `json:"timestamp"`
}

// EventSink receives committed events in flight id order.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

func newEvent(chainID uint64, contract common.Address, flightID uint64, registrant common.Address, dataHash *common.Hash, at time.Time) Event {
	ev := Event{
		Name:       EventRegisteredFlight,
		FlightID:   flightID,
		Registrant: registrant,
		Topic:      RegisteredFlightTopic,
		Contract:   contract,
		ChainID:    chainID,
		Timestamp:  at.UTC(),
	}
	if dataHash != nil {
		h := *dataHash
		ev.Name = EventFlightRegistered
		ev.Topic = FlightRegisteredTopic
		ev.DataHash = &h
	}
	ev.TxHash = txHash(chainID, contract, flightID, registrant, ev.DataHash)
	return ev
}
