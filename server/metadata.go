package server

import "github.com/CefBoud/kafkanet/types"

// handleMetadata always answers with an empty list
func (s *Server) handleMetadata(req types.Request) (any, error) {
	return []any{}, nil
}
