package server

import (
	"context"
	"net/http"

	"github.com/timeshipd/timeship/internal/serverapi"
)

// handleStorages lists the registered storage names, sorted.
func (s *Server) handleStorages(ctx context.Context, r *http.Request) (interface{}, *apiError) {
	return &serverapi.StoragesResponse{
		Storages: s.registry.Names(),
	}, nil
}
