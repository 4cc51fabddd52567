package client

import (
	"context"

	"github.com/CefBoud/kafkanet/protocol"
)

// ProducerClient publishes messages over a single broker connection.
// Concurrent calls are serialised; use several clients for parallel producers.
type ProducerClient struct {
	conn *conn
}

// NewProducerClient connects to the broker at addr
func NewProducerClient(ctx context.Context, addr string) (*ProducerClient, error) {
	c, err := dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &ProducerClient{conn: c}, nil
}

// Send publishes a message and returns where it was stored
func (p *ProducerClient) Send(ctx context.Context, topic, key, value string) (protocol.ProduceResult, error) {
	var result protocol.ProduceResult
	resp, err := p.conn.roundTrip(ctx, protocol.ProduceKey, protocol.ProduceRequest{Topic: topic, Key: key, Value: value})
	if err != nil {
		return result, err
	}
	err = protocol.DecodeData(resp, &result)
	return result, err
}

// CreateTopic creates the topic if it doesn't exist
func (p *ProducerClient) CreateTopic(ctx context.Context, topic string, partitions int32) error {
	_, err := p.conn.roundTrip(ctx, protocol.CreateTopicKey, protocol.CreateTopicRequest{Topic: topic, Partitions: partitions})
	return err
}

// Metadata returns the raw metadata payload
func (p *ProducerClient) Metadata(ctx context.Context) (string, error) {
	resp, err := p.conn.roundTrip(ctx, protocol.MetadataKey, protocol.MetadataRequest{})
	return resp.Data, err
}

// Close closes the connection
func (p *ProducerClient) Close() error {
	return p.conn.close()
}
