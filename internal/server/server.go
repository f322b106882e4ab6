// Package server exposes the rewrite engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/unnest/internal/executor"
	"github.com/leapstack-labs/unnest/internal/shape"
	"github.com/leapstack-labs/unnest/internal/sheet"
	"github.com/leapstack-labs/unnest/internal/template"
)

// Exporter is the engine surface the server needs.
type Exporter interface {
	Rewrite(ctx context.Context, sql string) (string, error)
	Export(ctx context.Context, sql string) (*sheet.Grid, error)
}

// Server is the HTTP API server.
type Server struct {
	engine Exporter
	addr   string
	logger *slog.Logger
}

// Config holds configuration for the HTTP server.
type Config struct {
	Engine Exporter
	Addr   string
	Logger *slog.Logger
}

// New creates a new API server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{engine: cfg.Engine, addr: cfg.Addr, logger: logger}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/rewrite", s.handleRewrite)
	r.Post("/v1/export", s.handleExport)
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting API server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQueryRequest(w, r)
	if !ok {
		return
	}

	rewritten, err := s.engine.Rewrite(r.Context(), req.SQL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rewriteResponse{SQL: rewritten})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQueryRequest(w, r)
	if !ok {
		return
	}

	grid, err := s.engine.Export(r.Context(), req.SQL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

// writeError maps pipeline errors onto HTTP statuses: malformed templates
// and rejected statements are the caller's fault, an unprobeable column is
// unprocessable data, and anything database-side is an upstream failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		synErr   *template.SyntaxError
		probeErr *shape.ProbeError
		roErr    *executor.NotReadOnlyError
		execErr  *executor.ExecutionError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &synErr), errors.As(err, &roErr):
		status = http.StatusBadRequest
	case errors.As(err, &probeErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &execErr):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		s.logger.Error("request failed", "status", status, "error", err)
	} else {
		s.logger.Info("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
