package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/types"
)

// DefaultBatchSize is the number of messages requested by each Poll
const DefaultBatchSize = 10

// polledPartition is the only partition a consumer reads. The group id is not
// used for assignment.
const polledPartition int32 = 0

var (
	// ErrNotSubscribed is returned by Poll before Subscribe
	ErrNotSubscribed = errors.New("consumer is not subscribed to a topic")
	// ErrConsumerStopped is returned by Poll after Stop
	ErrConsumerStopped = errors.New("consumer is stopped")
)

// ConsumerClient reads a topic over a single broker connection, keeping its
// position per partition in memory.
type ConsumerClient struct {
	GroupID   string
	BatchSize int32

	conn    *conn
	mu      sync.Mutex
	topic   string
	offsets map[int32]int64
	running atomic.Bool
}

// NewConsumerClient connects to the broker at addr
func NewConsumerClient(ctx context.Context, addr, groupID string) (*ConsumerClient, error) {
	c, err := dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	consumer := &ConsumerClient{
		GroupID:   groupID,
		BatchSize: DefaultBatchSize,
		conn:      c,
		offsets:   make(map[int32]int64),
	}
	consumer.running.Store(true)
	return consumer, nil
}

// Subscribe makes topic the active topic. Switching topics drops the positions of the previous one.
func (c *ConsumerClient) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topic != topic {
		c.offsets = make(map[int32]int64)
	}
	c.topic = topic
	if _, ok := c.offsets[polledPartition]; !ok {
		c.offsets[polledPartition] = 0
	}
}

// Topic returns the active topic
func (c *ConsumerClient) Topic() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic
}

// Poll fetches the next batch and hands every message to onMessage in offset order,
// advancing the position past each one. When nothing is available it waits for
// timeout (or ctx) before returning. It returns the number of delivered messages.
func (c *ConsumerClient) Poll(ctx context.Context, timeout time.Duration, onMessage func(types.Message)) (int, error) {
	if !c.running.Load() {
		return 0, ErrConsumerStopped
	}
	c.mu.Lock()
	topic, offset := c.topic, c.offsets[polledPartition]
	c.mu.Unlock()
	if topic == "" {
		return 0, ErrNotSubscribed
	}

	resp, err := c.conn.roundTrip(ctx, protocol.ConsumeKey, protocol.ConsumeRequest{
		Topic:       topic,
		Partition:   polledPartition,
		Offset:      offset,
		MaxMessages: c.BatchSize,
	})
	if err != nil {
		return 0, err
	}
	var messages []types.Message
	if err := protocol.DecodeData(resp, &messages); err != nil {
		return 0, err
	}

	for _, msg := range messages {
		onMessage(msg)
		c.mu.Lock()
		if c.topic == topic {
			c.offsets[polledPartition] = msg.Offset + 1
		}
		c.mu.Unlock()
	}
	if len(messages) == 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return len(messages), nil
}

// Position returns the next offset to be read from partition
func (c *ConsumerClient) Position(partition int32) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsets[partition]
}

// Seek moves the position of partition
func (c *ConsumerClient) Seek(partition int32, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets[partition] = offset
}

// Commit stores the current position under the consumer's group
func (c *ConsumerClient) Commit(ctx context.Context) error {
	c.mu.Lock()
	topic, offset := c.topic, c.offsets[polledPartition]
	c.mu.Unlock()
	if topic == "" {
		return ErrNotSubscribed
	}
	_, err := c.conn.roundTrip(ctx, protocol.OffsetCommitKey, protocol.OffsetCommitRequest{
		Group:     c.GroupID,
		Topic:     topic,
		Partition: polledPartition,
		Offset:    offset,
	})
	return err
}

// SeekToCommitted moves to the group's committed position, if there is one,
// and returns the resulting position
func (c *ConsumerClient) SeekToCommitted(ctx context.Context) (int64, error) {
	topic := c.Topic()
	if topic == "" {
		return 0, ErrNotSubscribed
	}
	resp, err := c.conn.roundTrip(ctx, protocol.OffsetFetchKey, protocol.OffsetFetchRequest{
		Group:     c.GroupID,
		Topic:     topic,
		Partition: polledPartition,
	})
	if err != nil {
		return 0, err
	}
	var result protocol.OffsetResult
	if err := protocol.DecodeData(resp, &result); err != nil {
		return 0, err
	}
	if result.Offset != types.NoCommittedOffset {
		c.Seek(polledPartition, result.Offset)
	}
	return c.Position(polledPartition), nil
}

// Stop makes later polls return ErrConsumerStopped. An in-flight Poll completes.
func (c *ConsumerClient) Stop() {
	c.running.Store(false)
}

// IsRunning reports whether Stop hasn't been called
func (c *ConsumerClient) IsRunning() bool {
	return c.running.Load()
}

// Close stops the consumer and closes the connection
func (c *ConsumerClient) Close() error {
	c.Stop()
	return c.conn.close()
}
