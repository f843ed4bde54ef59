package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"drone-flight/registry/internal/ledger"

	"github.com/redis/go-redis/v9"
)

// StreamMessage is one ledger event read from the stream. Err is set when
// the payload could not be decoded.
type StreamMessage struct {
	ID    string
	Event ledger.Event
	Err   error
}

// RedisStreamService publishes ledger events to a Redis Stream and reads
// them back through a consumer group.
type RedisStreamService struct {
	client         *redis.Client
	stream         string
	maxLen         int64
	publishTimeout time.Duration
}

// Publish runs under the ledger lock, so every XADD is bounded.
const defaultPublishTimeout = 2 * time.Second

var _ ledger.EventSink = (*RedisStreamService)(nil)

func NewRedisStreamService(client *redis.Client, stream string, maxLen int64) *RedisStreamService {
	return &RedisStreamService{client: client, stream: stream, maxLen: maxLen, publishTimeout: defaultPublishTimeout}
}

func (s *RedisStreamService) Stream() string { return s.stream }

// Publish appends ev to the stream (XADD stream * data <json>).
func (s *RedisStreamService) Publish(ctx context.Context, ev ledger.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"flight_id": ev.FlightID,
			"data":      string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}
	return nil
}

// CreateConsumerGroup creates group reading from the start of the stream.
func (s *RedisStreamService) CreateConsumerGroup(ctx context.Context, group string) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, group, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// Read returns up to count new messages for consumer, blocking up to block.
func (s *RedisStreamService) Read(ctx context.Context, group, consumer string, count int64, block time.Duration) ([]StreamMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{s.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var out []StreamMessage
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			out = append(out, decodeStreamMessage(msg))
		}
	}
	return out, nil
}

func (s *RedisStreamService) Ack(ctx context.Context, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.XAck(ctx, s.stream, group, ids...).Err()
}

func (s *RedisStreamService) Length(ctx context.Context) (int64, error) {
	length, err := s.client.XLen(ctx, s.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get stream length: %w", err)
	}
	return length, nil
}

func (s *RedisStreamService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeStreamMessage(msg redis.XMessage) StreamMessage {
	dataStr, ok := msg.Values["data"].(string)
	if !ok {
		return StreamMessage{ID: msg.ID, Err: fmt.Errorf("invalid message %s: data field missing", msg.ID)}
	}
	var ev ledger.Event
	if err := json.Unmarshal([]byte(dataStr), &ev); err != nil {
		return StreamMessage{ID: msg.ID, Err: fmt.Errorf("failed to unmarshal message %s: %w", msg.ID, err)}
	}
	return StreamMessage{ID: msg.ID, Event: ev}
}
