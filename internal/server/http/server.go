package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"agentsvc/internal/config"
	"agentsvc/internal/logging"
)

// Server runs the HTTP API until its context is canceled.
type Server struct {
	httpServer *http.Server
	cfg        config.ServerConfig
	logger     logging.Logger
}

func NewServer(cfg config.ServerConfig, handler http.Handler, logger logging.Logger) *Server {
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("http")
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Run listens on the configured address and shuts down gracefully when ctx
// is canceled, waiting up to the shutdown timeout for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening on %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server (timeout %v)", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
