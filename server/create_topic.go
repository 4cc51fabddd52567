package server

import (
	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/types"
)

// handleCreateTopic creates the topic. Creating an existing topic succeeds and leaves it unchanged.
func (s *Server) handleCreateTopic(req types.Request) (any, error) {
	var create protocol.CreateTopicRequest
	if err := protocol.DecodePayload(req, &create); err != nil {
		return nil, err
	}
	if _, err := s.Broker.CreateTopic(create.Topic, int(create.Partitions)); err != nil {
		return nil, err
	}
	return nil, nil
}
