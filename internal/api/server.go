// Package api exposes the admin HTTP surface: campaign CRUD and lifecycle,
// contact and suppression management, audience preview, and the public
// tracking routes.
package api

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the HTTP server around the assembled router.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates an API server from the given dependencies.
func NewServer(deps Deps) *Server {
	return &Server{handler: NewRouter(deps)}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
