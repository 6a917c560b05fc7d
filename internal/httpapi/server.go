package httpapi

import (
	"context"
	"fmt"
	"net/http"

	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// Server wraps net/http.Server with the teacher's timeout-configuration
// pattern (platform.HTTPConfig) and graceful shutdown.
type Server struct {
	httpServer *http.Server
	logger     core.Logger
}

func NewServer(addr string, router *Router, cfg core.HTTPConfig, logger core.Logger) *Server {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Start runs ListenAndServe in its own goroutine and reports unexpected
// failures through errCh.
func (s *Server) Start(errCh chan<- error) {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
