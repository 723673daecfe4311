// Package server is the demo HTTP front spec.md's access-method contract
// can sit behind: chi routes over one vector.Index, jwt/v5 bearer auth, and
// x/time/rate limiting, grounded on the teacher's cmd/arx/main.go server
// wiring and arx-backend/gateway/middleware auth/rate-limit pair.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arx-os/vecindex/internal/common/logger"
	"github.com/arx-os/vecindex/pkg/vector"
)

// Server wraps an http.Server bound to NewRouter's chi.Router.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// New builds a Server listening on addr.
func New(addr string, ix *vector.Index, cfg Config, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(ix, cfg),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		log: logger.With("component", "server"),
	}
}

// Run starts the server and blocks until ctx is canceled, then shuts down
// gracefully, matching the teacher's signal-driven shutdown in
// cmd/arx/main.go.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("serve: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
