// Package server implements the timeship API server handlers.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/timeshipd/timeship/internal/clock"
	"github.com/timeshipd/timeship/internal/logging"
	"github.com/timeshipd/timeship/storage"
)

var log = logging.Module("timeship/server")

// Options configures the server.
type Options struct {
	// LogRequests enables per-request debug logging.
	LogRequests bool
}

// Server exposes the timeship storage layer over HTTP. It holds no
// state beyond the storage registry; every request is independently
// serviceable.
type Server struct {
	registry *storage.Registry
	options  Options
}

type apiRequestFunc func(ctx context.Context, r *http.Request) (interface{}, *apiError)

// New creates a server for the given registry.
func New(registry *storage.Registry, options Options) *Server {
	return &Server{
		registry: registry,
		options:  options,
	}
}

// SetupAPIHandlers registers all API routes on the given router.
func (s *Server) SetupAPIHandlers(m *mux.Router) {
	m.HandleFunc("/storages", s.handleAPI(s.handleStorages)).Methods(http.MethodGet)

	m.HandleFunc("/storages/{storage}/nodes", s.logged(s.handleNodes)).Methods(http.MethodGet)
	m.HandleFunc("/storages/{storage}/nodes/{path:.*}", s.logged(s.handleNodes)).Methods(http.MethodGet)

	m.HandleFunc("/storages/{storage}/snapshots", s.handleAPI(s.handleSnapshots)).Methods(http.MethodGet)
	m.HandleFunc("/storages/{storage}/snapshots/{path:.*}", s.handleAPI(s.handleSnapshots)).Methods(http.MethodGet)

	// reserved write endpoints
	m.HandleFunc("/storages/{storage}/nodes", s.handleAPI(s.handleNotImplemented)).Methods(http.MethodPost)
	m.HandleFunc("/storages/{storage}/nodes/{path:.*}", s.handleAPI(s.handleNotImplemented)).
		Methods(http.MethodDelete, http.MethodPatch, http.MethodPost)
	m.HandleFunc("/storages/{storage}/copies", s.handleAPI(s.handleNotImplemented)).Methods(http.MethodPost)
	m.HandleFunc("/storages/{storage}/moves", s.handleAPI(s.handleNotImplemented)).Methods(http.MethodPost)
	m.HandleFunc("/storages/{storage}/archives", s.handleAPI(s.handleNotImplemented)).
		Methods(http.MethodGet, http.MethodPost)
	m.HandleFunc("/storages/{storage}/archives/{path:.*}", s.handleAPI(s.handleNotImplemented)).
		Methods(http.MethodGet, http.MethodPost)

	// the requested path is deliberately not echoed back
	m.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendAPIError(w, notFoundError("no such route"))
	})
}

// handleAPI wraps a request function that produces a JSON value or an
// API error.
func (s *Server) handleAPI(f apiRequestFunc) http.HandlerFunc {
	return s.logged(func(w http.ResponseWriter, r *http.Request) {
		v, err := f(r.Context(), r)
		if err != nil {
			sendAPIError(w, err)
			return
		}

		sendJSON(r.Context(), w, v)
	})
}

func sendJSON(ctx context.Context, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	e := json.NewEncoder(w)
	e.SetIndent("", "  ")

	if err := e.Encode(v); err != nil {
		log(ctx).Errorf("error encoding response: %v", err)
	}
}

func (s *Server) logged(f http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.options.LogRequests {
			t0 := clock.Now()
			defer func() {
				log(r.Context()).Debugf("%v %v took %v", r.Method, r.URL, clock.Since(t0))
			}()
		}

		f(w, r)
	}
}

func sendAPIError(w http.ResponseWriter, err *apiError) {
	w.Header().Set("Content-Type", errorContentType)
	w.WriteHeader(err.httpErrorCode)

	_ = json.NewEncoder(w).Encode(err.response())
}

// getStorage resolves a storage by name, or the default storage when
// the name is empty.
func (s *Server) getStorage(name string) (storage.Storage, *apiError) {
	if name == "" {
		name = s.registry.Default()
	}

	if name == "" {
		return nil, storageNotFoundError("(none)")
	}

	st, ok := s.registry.ByName(name)
	if !ok {
		return nil, storageNotFoundError(name)
	}

	return st, nil
}
