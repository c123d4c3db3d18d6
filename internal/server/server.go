package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/logger"
	"ragqa/internal/metrics"
)

const (
	httpReadHeaderTimeout = 10 * time.Second
	httpReadTimeout       = 30 * time.Second
	httpWriteTimeout      = 2 * time.Minute
	httpIdleTimeout       = 60 * time.Second
)

// RAG is the application surface served over HTTP.
type RAG interface {
	Ingest(ctx context.Context, docs []domain.CandidateDocument) (domain.IngestResponse, error)
	Ask(ctx context.Context, question string, topK *int) (domain.AskResponse, error)
}

type Server struct {
	cfg    config.ServerConfig
	router *gin.Engine
	log    logger.Logger
}

func New(cfg config.ServerConfig, rag RAG, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Server{cfg: cfg, router: NewRouter(cfg, rag, m, log), log: log}
}

// NewRouter wires middleware and routes.
func NewRouter(cfg config.ServerConfig, rag RAG, m *metrics.Metrics, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware(log))
	r.Use(LoggerMiddleware(m))
	r.Use(CORSMiddleware())
	if cfg.RateLimit.Enabled && cfg.RateLimit.Limit > 0 {
		r.Use(RateLimitMiddleware(cfg.RateLimit))
	}
	r.Use(BodySizeMiddleware(cfg.MaxBodyBytes))
	h := &handlers{rag: rag, validate: validator.New(validator.WithRequiredStructEnabled())}
	r.POST("/ingest", h.ingest)
	r.POST("/ask", h.ask)
	r.GET("/healthz", healthz)
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.NoRoute(notFound)
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: httpReadHeaderTimeout,
		ReadTimeout:       httpReadTimeout,
		WriteTimeout:      httpWriteTimeout,
		IdleTimeout:       httpIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.log.Debug("Received shutdown signal, initiating graceful shutdown")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("Server shutdown completed successfully")
	return nil
}
