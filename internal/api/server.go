package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/logger"
)

// Server timeouts. Backtests run synchronously inside the request, so the
// write timeout covers a multi-year, two-market run.
const (
	readTimeout  = 15 * time.Second
	writeTimeout = 10 * time.Minute
	idleTimeout  = 60 * time.Second
)

// Server is the HTTP front of the screener
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	env        string
}

// New creates a server listening on cfg.Port
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort("", cfg.Port),
			Handler:           router,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		logger: log.Component("api"),
		env:    cfg.Env,
	}
}

// Addr returns the listen address (":8089")
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start blocks serving requests until Shutdown
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"addr": s.Addr(),
		"env":  s.env,
	}).Info("Starting API server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("listen %s: %w", s.Addr(), err)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
