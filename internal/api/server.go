// Package api provides the thin HTTP retrieval daemon (SPEC_FULL.md §4
// "Retrieval HTTP daemon"): a single-collection search endpoint adapted
// from the teacher's internal/api (health-checked startup, SIGHUP config
// reload, graceful shutdown), rewired onto search.HybridSearch instead of
// a bare dense vectordb.Search.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/iasik/codesearch/internal/config"
	"github.com/iasik/codesearch/internal/search"
)

// Server is the HTTP API server for one project's collection.
type Server struct {
	cfg            *config.Manager
	collectionName string
	isHybrid       bool
	searcher       *search.Searcher
	logger         *slog.Logger
	httpServer     *http.Server
	mu             sync.RWMutex
	version        string
}

// NewServer creates a new retrieval API server bound to collectionName.
// isHybrid is the collection's own ProjectMetadata.IsHybrid flag; every
// search reports its negation back to callers as degradedMode.
func NewServer(cfg *config.Manager, collectionName string, isHybrid bool, searcher *search.Searcher, logger *slog.Logger) *Server {
	return &Server{
		cfg:            cfg,
		collectionName: collectionName,
		isHybrid:       isHybrid,
		searcher:       searcher,
		logger:         logger,
		version:        "1.0.0",
	}
}

// Start starts the HTTP server with graceful shutdown, returning once
// ctx is cancelled or the server reports a fatal error.
func (s *Server) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /retrieve", s.handleRetrieve)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.loggingMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.setupHotReload()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", port, "version", s.version, "collection", s.collectionName)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// setupHotReload configures a SIGHUP handler for config reload, mirroring
// the teacher's hot-reload behavior. A reload refreshes the config.Manager,
// but the searcher is immutable per run and the server registers no
// OnChange listener, so changed values take effect only after a restart.
func (s *Server) setupHotReload() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for range sigCh {
			s.logger.Info("received SIGHUP, reloading config")
			if err := s.cfg.Reload(); err != nil {
				s.logger.Error("config reload failed", "error", err)
			} else {
				s.logger.Info("config reloaded successfully")
			}
		}
	}()
}

func (s *Server) getSearcher() *search.Searcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searcher
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
