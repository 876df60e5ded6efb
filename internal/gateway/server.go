package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Server hosts the websocket ingest endpoint plus a liveness probe.
type Server struct {
	addr    string
	handler *Handler

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer binds the handler to addr (host:port).
func NewServer(addr string, handler *Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return ErrServerRunning
	}

	mux := http.NewServeMux()
	mux.Handle("/gateway", s.handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("gateway server listening: addr=%s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("gateway server stopped: err=%v", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting up to the context deadline for open
// connections to finish.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return ErrServerNotRunning
	}
	return srv.Shutdown(ctx)
}
