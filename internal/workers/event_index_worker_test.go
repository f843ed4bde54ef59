package workers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"drone-flight/registry/internal/common"
	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeStream struct {
	mu      sync.Mutex
	pending []common.StreamMessage
	acked   []string
	groups  []string
}

func (f *fakeStream) CreateConsumerGroup(_ context.Context, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, group)
	return nil
}

func (f *fakeStream) Read(ctx context.Context, _, _ string, count int64, block time.Duration) ([]common.StreamMessage, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		n := min(int(count), len(f.pending))
		out := f.pending[:n]
		f.pending = f.pending[n:]
		f.mu.Unlock()
		return out, nil
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(block):
		return nil, nil
	}
}

func (f *fakeStream) Ack(_ context.Context, _ string, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return nil
}

func (f *fakeStream) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

type fakeIndex struct {
	mu       sync.Mutex
	inserted []uint64
	failFor  uint64
}

func (f *fakeIndex) Insert(_ context.Context, ev ledger.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.FlightID == f.failFor {
		return errors.New("connection refused")
	}
	f.inserted = append(f.inserted, ev.FlightID)
	return nil
}

func (f *fakeIndex) ids() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.inserted...)
}

func TestEventIndexWorker_IndexesAndAcks(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := &fakeStream{pending: []common.StreamMessage{
		{ID: "1-0", Event: ledger.Event{FlightID: 1}},
		{ID: "2-0", Err: errors.New("bad payload")},
		{ID: "3-0", Event: ledger.Event{FlightID: 3}},
		{ID: "4-0", Event: ledger.Event{FlightID: 4}},
	}}
	index := &fakeIndex{failFor: 4}
	m := metrics.NewMetricsRegistry()

	w := NewEventIndexWorker("indexer", "flight-indexers", stream, index, m)
	w.block = 10 * time.Millisecond
	w.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, 1) }()

	require.Eventually(t, func() bool {
		return len(stream.ackedIDs()) == 4
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"1-0", "2-0", "3-0", "4-0"}, stream.ackedIDs())
	assert.Equal(t, []uint64{1, 3}, index.ids())
	assert.Equal(t, []string{"flight-indexers"}, stream.groups)

	scrape := scrapeMetrics(t, m)
	assert.Contains(t, scrape, `flightreg_events_indexed_total{outcome="ok"} 2`)
	assert.Contains(t, scrape, `flightreg_events_indexed_total{outcome="malformed"} 1`)
	assert.Contains(t, scrape, `flightreg_events_indexed_total{outcome="failed"} 1`)
}

type fakeLengther struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeLengther) Length(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 42, nil
}

func (f *fakeLengther) Stream() string { return "flights:events" }

func TestStreamMonitor_ChecksOnStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := &fakeLengther{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewStreamMonitor(stream).Start(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return stream.calls == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func scrapeMetrics(t *testing.T, m *metrics.MetricsRegistry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}
