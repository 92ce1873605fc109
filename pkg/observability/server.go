package observability

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Server exposes health and metrics endpoints on a port separate from the
// game API, so probes and scrapes never compete with player traffic.
type Server struct {
	httpServer *http.Server
	port       int
}

// NewServer creates an observability server listening on the given port.
func NewServer(port int) *Server {
	return &Server{
		port: port,
	}
}

// Start serves /health, /health/live, /health/ready and /metrics.
// It blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Observability endpoints on :%d", s.port)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server, waiting for in-flight scrapes up to the
// context deadline. Safe to call before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
