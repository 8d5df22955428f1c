// Package server exposes pipeline runs over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sipeed/picocast/pkg/acquire"
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/pipeline"
)

const component = "server"

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, in acquire.Input, opts pipeline.Options) (*pipeline.Result, error)
}

type Server struct {
	cfg     *config.Config
	runner  Runner
	limiter *rate.Limiter
	server  *http.Server
}

// NewServer creates the HTTP front end. Runs are admitted at
// cfg.Server.RunsPerMinute with an equal burst; zero disables the limit.
func NewServer(cfg *config.Config, runner Runner) *Server {
	s := &Server{cfg: cfg, runner: runner}
	if n := cfg.Server.RunsPerMinute; n > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	return s
}

// Handler returns the routed handler with authentication applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/runs", s.authMiddleware(s.limit(s.handleRun)))
	mux.HandleFunc("GET /api/voices", s.authMiddleware(s.handleVoices))
	mux.HandleFunc("GET /api/models", s.authMiddleware(s.handleModels))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoCF(component, "HTTP server starting", map[string]any{"addr": ln.Addr().String()})
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF(component, "HTTP server error", map[string]any{"error": err.Error()})
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
