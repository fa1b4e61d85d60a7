// Package server exposes the pipeline runner over HTTP.
//
// Routes:
//
//	GET    /healthz
//	POST   /v1/candidates/validate
//	GET    /v1/workflows
//	POST   /v1/workflows?id=ID              commit import
//	GET    /v1/workflows/{id}
//	PATCH  /v1/workflows/{id}               incremental edit
//	DELETE /v1/workflows/{id}
//	POST   /v1/workflows/{id}/generate      draft merge
//	POST   /v1/workflows/{id}/layout
//	POST   /v1/workflows/{id}/review
//	GET    /v1/workflows/{id}/dot?format=svg
//
// Candidate bodies are JSON unless the Content-Type names YAML or the
// request carries ?format=yaml. Errors are returned as
// {"error": {"code", "message", "issues"}}.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/flowmerge/pkg/observability"
	"github.com/matzehuels/flowmerge/pkg/pipeline"
)

const (
	defaultRequestTimeout = 60 * time.Second
	defaultReadTimeout    = 15 * time.Second
	shutdownTimeout       = 10 * time.Second

	// maxBodyBytes bounds candidate and review bodies.
	maxBodyBytes = 4 << 20
)

// Options configures a Server.
type Options struct {
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
}

// Server serves the workflow API.
type Server struct {
	runner  *pipeline.Runner
	logger  *log.Logger
	opts    Options
	handler http.Handler
}

// New creates a server over runner. A nil logger discards output.
func New(runner *pipeline.Runner, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	s := &Server{runner: runner, logger: logger, opts: opts}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/candidates/validate", s.handleValidate)

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleImport)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Patch("/", s.handleEdit)
				r.Delete("/", s.handleDelete)
				r.Post("/generate", s.handleGenerate)
				r.Post("/layout", s.handleLayout)
				r.Post("/review", s.handleReview)
				r.Get("/dot", s.handleExport)
			})
		})
	})
	return r
}

// observe logs each request and reports it to the HTTP hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		ReadTimeout:       s.opts.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
