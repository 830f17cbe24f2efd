// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/config"
)

// Server wraps the HTTP listener with bounded lifecycle control.
type Server struct {
	http   *http.Server
	grace  time.Duration
	logger *zap.Logger
}

// NewServer creates a Server on the configured listen address.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		grace:  cfg.ShutdownGrace,
		logger: logger.Named("server"),
	}
}

// Run serves until the context is cancelled, then drains in-flight requests
// within the shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening.", zap.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	s.logger.Info("Shutting down HTTP server.")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
