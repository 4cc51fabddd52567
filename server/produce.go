package server

import (
	"time"

	log "github.com/CefBoud/kafkanet/logging"
	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/types"
)

// handleProduce appends the message, creating the topic with one partition if needed
func (s *Server) handleProduce(req types.Request) (any, error) {
	var produce protocol.ProduceRequest
	if err := protocol.DecodePayload(req, &produce); err != nil {
		return nil, err
	}
	start := time.Now()
	partition, msg, err := s.Broker.PublishToTopic(produce.Topic, produce.Key, produce.Value)
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordProduce(produce.Topic, time.Since(start))
	log.Debug("produced %v-%v offset %v", produce.Topic, partition, msg.Offset)
	return protocol.ProduceResult{Partition: partition, Offset: msg.Offset}, nil
}
