package server

import (
	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/types"
)

func (s *Server) offsetKey(group, topic string, partition int32) (types.GroupOffsetKey, error) {
	if _, err := s.lookupPartition(topic, partition); err != nil {
		return types.GroupOffsetKey{}, err
	}
	return types.GroupOffsetKey{Group: types.GroupID(group), TopicName: topic, PartitionIndex: uint32(partition)}, nil
}

// handleOffsetCommit stores the group's position for a partition
func (s *Server) handleOffsetCommit(req types.Request) (any, error) {
	var commit protocol.OffsetCommitRequest
	if err := protocol.DecodePayload(req, &commit); err != nil {
		return nil, err
	}
	key, err := s.offsetKey(commit.Group, commit.Topic, commit.Partition)
	if err != nil {
		return nil, err
	}
	if err := s.Broker.CommitOffset(key, commit.Offset); err != nil {
		return nil, err
	}
	return protocol.OffsetResult{Offset: commit.Offset}, nil
}

// handleOffsetFetch returns the group's committed position, or types.NoCommittedOffset
func (s *Server) handleOffsetFetch(req types.Request) (any, error) {
	var fetch protocol.OffsetFetchRequest
	if err := protocol.DecodePayload(req, &fetch); err != nil {
		return nil, err
	}
	key, err := s.offsetKey(fetch.Group, fetch.Topic, fetch.Partition)
	if err != nil {
		return nil, err
	}
	offset, err := s.Broker.FetchOffset(key)
	if err != nil {
		return nil, err
	}
	return protocol.OffsetResult{Offset: offset}, nil
}
