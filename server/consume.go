package server

import (
	"fmt"

	"github.com/CefBoud/kafkanet/broker"
	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/storage"
	"github.com/CefBoud/kafkanet/types"
)

// lookupPartition resolves a topic partition named in a request
func (s *Server) lookupPartition(topicName string, index int32) (*storage.Partition, error) {
	topic, ok := s.Broker.GetTopic(topicName)
	if !ok {
		return nil, fmt.Errorf("%w: %v", broker.ErrTopicNotFound, topicName)
	}
	return topic.GetPartition(int(index))
}

// handleConsume returns up to MaxMessages messages from Offset onwards
func (s *Server) handleConsume(req types.Request) (any, error) {
	var consume protocol.ConsumeRequest
	if err := protocol.DecodePayload(req, &consume); err != nil {
		return nil, err
	}
	partition, err := s.lookupPartition(consume.Topic, consume.Partition)
	if err != nil {
		return nil, err
	}
	messages := partition.Read(consume.Offset, int(consume.MaxMessages))
	s.Metrics.RecordConsume(consume.Topic, len(messages))
	return messages, nil
}
