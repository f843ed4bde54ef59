package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"drone-flight/registry/internal/common"
	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/logging"
	"drone-flight/registry/internal/metrics"
)

// StreamReader is the consumer-group side of the event stream.
type StreamReader interface {
	CreateConsumerGroup(ctx context.Context, group string) error
	Read(ctx context.Context, group, consumer string, count int64, block time.Duration) ([]common.StreamMessage, error)
	Ack(ctx context.Context, group string, ids ...string) error
}

// EventIndex stores consumed events. Insert must ignore re-deliveries.
type EventIndex interface {
	Insert(ctx context.Context, ev ledger.Event) error
}

// EventIndexWorker copies ledger events from the Redis stream into the
// Postgres index.
type EventIndexWorker struct {
	workerID string
	group    string
	stream   StreamReader
	index    EventIndex
	metrics  *metrics.MetricsRegistry

	batch   int64
	block   time.Duration
	retries int
	backoff time.Duration
}

// NewEventIndexWorker creates a worker. m may be nil.
func NewEventIndexWorker(workerID, group string, stream StreamReader, index EventIndex, m *metrics.MetricsRegistry) *EventIndexWorker {
	return &EventIndexWorker{
		workerID: workerID,
		group:    group,
		stream:   stream,
		index:    index,
		metrics:  m,
		batch:    10,
		block:    5 * time.Second,
		retries:  3,
		backoff:  time.Second,
	}
}

// Start runs numWorkers consumers in the group until ctx is cancelled.
func (w *EventIndexWorker) Start(ctx context.Context, numWorkers int) error {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if err := w.stream.CreateConsumerGroup(ctx, w.group); err != nil {
		return fmt.Errorf("failed to create consumer group %s: %w", w.group, err)
	}

	logging.Info("Starting event index workers",
		"worker_id", w.workerID,
		"group", w.group,
		"workers", numWorkers,
	)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		consumer := fmt.Sprintf("%s-%d", w.workerID, i)
		go func() {
			defer wg.Done()
			w.consume(ctx, consumer)
		}()
	}

	wg.Wait()
	logging.Info("Event index workers stopped", "worker_id", w.workerID)
	return nil
}

func (w *EventIndexWorker) consume(ctx context.Context, consumer string) {
	processed, failed := 0, 0

	for {
		select {
		case <-ctx.Done():
			logging.Info("Event index consumer shutting down",
				"consumer", consumer,
				"processed", processed,
				"failed", failed,
			)
			return
		default:
		}

		msgs, err := w.stream.Read(ctx, w.group, consumer, w.batch, w.block)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logging.Warn("Failed to read event stream", "consumer", consumer, "error", err.Error())
			sleep(ctx, w.backoff)
			continue
		}

		for _, msg := range msgs {
			if w.handle(ctx, consumer, msg) {
				processed++
			} else {
				failed++
			}
		}
	}
}

// handle indexes one message and acknowledges it. Undecodable messages and
// events that still fail after the retries are acknowledged too, so one bad
// entry cannot block the group.
func (w *EventIndexWorker) handle(ctx context.Context, consumer string, msg common.StreamMessage) bool {
	ok := false
	switch {
	case msg.Err != nil:
		logging.Error("Dropping malformed stream message", "consumer", consumer, "id", msg.ID, "error", msg.Err.Error())
		w.count("malformed")
	default:
		var err error
		for attempt := 0; attempt < w.retries; attempt++ {
			if err = w.index.Insert(ctx, msg.Event); err == nil {
				break
			}
			sleep(ctx, w.backoff)
		}
		if err != nil {
			logging.Error("Failed to index event",
				"consumer", consumer,
				"id", msg.ID,
				"flight_id", msg.Event.FlightID,
				"error", err.Error(),
			)
			w.count("failed")
		} else {
			w.count("ok")
			ok = true
		}
	}

	if err := w.stream.Ack(ctx, w.group, msg.ID); err != nil {
		logging.Warn("Failed to ack stream message", "consumer", consumer, "id", msg.ID, "error", err.Error())
	}
	return ok
}

func (w *EventIndexWorker) count(outcome string) {
	if w.metrics != nil {
		w.metrics.EventsIndexedTotal.WithLabelValues(outcome).Inc()
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
