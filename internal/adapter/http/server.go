// Package http serves the overlay generator over HTTP: a server-sent event
// progress stream, the generated artifacts, run history and health endpoints.
package http

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/couchcryptid/lightning-overlay-service/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generator runs the overlay pipeline for one request.
type Generator interface {
	Run(ctx context.Context, req domain.Request) iter.Seq[domain.Event]
}

// CountryLister returns the country codes that have a boundary.
type CountryLister interface {
	Codes() ([]string, error)
}

// RunHistory lists journaled runs.
type RunHistory interface {
	ListRuns(ctx context.Context, f store.RunFilter) ([]domain.RunRecord, error)
}

// Options wires the server's collaborators. Runs may be nil when the journal
// is disabled.
type Options struct {
	Addr      string
	StaticDir string
	Generator Generator
	Countries CountryLister
	Runs      RunHistory
	Ready     sharedobs.ReadinessChecker
}

// Server exposes the overlay stream, static files, and health, readiness and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	opts       Options
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        opts.Addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// Event streams last as long as a run, so writes have no deadline.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		opts:   opts,
		logger: logger,
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /stream-generate", s.handleStream)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	mux.HandleFunc("GET /products", s.handleProducts)
	mux.HandleFunc("GET /countries", s.handleCountries)
	if opts.Runs != nil {
		mux.HandleFunc("GET /runs", s.handleRuns)
	}
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(opts.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.opts.StaticDir, "index.html"))
}
