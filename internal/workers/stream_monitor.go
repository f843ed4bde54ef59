package workers

import (
	"context"
	"time"

	"drone-flight/registry/internal/logging"
)

// StreamLengther reports the number of entries retained in a stream.
type StreamLengther interface {
	Length(ctx context.Context) (int64, error)
	Stream() string
}

// StreamMonitor periodically logs the event stream length.
type StreamMonitor struct {
	stream StreamLengther
}

func NewStreamMonitor(stream StreamLengther) *StreamMonitor {
	return &StreamMonitor{stream: stream}
}

// Start checks the stream now and then every interval until ctx ends.
func (m *StreamMonitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *StreamMonitor) check(ctx context.Context) {
	length, err := m.stream.Length(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn("Failed to check event stream", "stream", m.stream.Stream(), "error", err.Error())
		}
		return
	}
	logging.Debug("Event stream status", "stream", m.stream.Stream(), "length", length)
}
