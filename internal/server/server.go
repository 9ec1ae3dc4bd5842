// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/suqdata/market-cli/internal/config"
	"github.com/suqdata/market-cli/internal/pipeline"
)

// Server serves analysis results, region lookups, and cache management.
type Server struct {
	analyzer *pipeline.Analyzer
	router   chi.Router
}

// New builds the route tree around an analyzer.
func New(analyzer *pipeline.Analyzer, cfg config.ServerConfig) *Server {
	s := &Server{analyzer: analyzer}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Get("/analysis/{commodity}/{period}", s.handleAnalysis)
		api.Get("/centrality/{commodity}/{period}", s.handleCentrality)
		api.Get("/diagnostics/{commodity}/{period}", s.handleDiagnostics)
		api.Get("/regions", s.handleRegions)
		api.Get("/regions/resolve", s.handleResolve)
		api.Get("/cache/stats", s.handleCacheStats)
		api.Delete("/cache", s.handleCacheClear)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("server: listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}
