package server

import (
	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/types"
)

// RequestHandler represents a request type with its handler. The handler's
// result, if not nil, is sent back JSON-encoded as the response Data.
type RequestHandler struct {
	Name    string
	Handler func(req types.Request) (any, error)
}

// RequestDispatcher maps the request type to its handler
func (s *Server) RequestDispatcher(requestType types.RequestType) RequestHandler {
	switch requestType {
	case protocol.ProduceKey:
		return RequestHandler{Name: "Produce", Handler: s.handleProduce}
	case protocol.ConsumeKey:
		return RequestHandler{Name: "Consume", Handler: s.handleConsume}
	case protocol.CreateTopicKey:
		return RequestHandler{Name: "CreateTopic", Handler: s.handleCreateTopic}
	case protocol.MetadataKey:
		return RequestHandler{Name: "Metadata", Handler: s.handleMetadata}
	case protocol.OffsetCommitKey:
		return RequestHandler{Name: "OffsetCommit", Handler: s.handleOffsetCommit}
	case protocol.OffsetFetchKey:
		return RequestHandler{Name: "OffsetFetch", Handler: s.handleOffsetFetch}
	default:
		return RequestHandler{Name: "Unknown"}
	}
}
