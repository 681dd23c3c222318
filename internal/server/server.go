// Package server provides the HTTP API for kikigaki.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kikigaki/internal/catalog"
	"github.com/hyperjump/kikigaki/internal/config"
	"github.com/hyperjump/kikigaki/internal/searchidx"
)

// Server is the HTTP server for the kikigaki API.
type Server struct {
	catalog *catalog.Catalog
	index   *searchidx.Index
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. idx may be
// nil when no search index is configured; search requests then return
// 501.
func NewServer(cat *catalog.Catalog, idx *searchidx.Index, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		catalog: cat,
		index:   idx,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/episodes", s.handleListEpisodes)
	r.Get("/api/v1/episodes/{prefix}/{number}", s.handleGetEpisode)
	r.Get("/api/v1/search", s.handleSearch)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
