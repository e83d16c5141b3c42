package server

import (
	"context"
	"net/http"
)

// handleNotImplemented backs the reserved write endpoints of the wire
// contract: create, delete, move, copy and archive operations.
func (s *Server) handleNotImplemented(ctx context.Context, r *http.Request) (interface{}, *apiError) {
	return nil, notImplementedError("write operations are not implemented")
}
