// Package server provides the HTTP API for BookRS.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/bookrs/internal/artifact"
	"github.com/hyperjump/bookrs/internal/config"
	"github.com/hyperjump/bookrs/internal/keyword"
	"github.com/hyperjump/bookrs/internal/recommend"
	"github.com/hyperjump/bookrs/internal/storage"
)

// Server is the HTTP server for the BookRS API.
type Server struct {
	engine  *recommend.Engine
	store   *artifact.Store
	storage storage.Storage
	index   keyword.KeywordIndex
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. storage and index
// may be nil when the catalog layer is not configured; the routes that need
// them respond 501.
func NewServer(
	engine *recommend.Engine,
	store *artifact.Store,
	st storage.Storage,
	index keyword.KeywordIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		store:   store,
		storage: st,
		index:   index,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/api/v1/recommend", s.handleRecommend)
	r.Get("/api/v1/popular", s.handlePopular)
	r.Get("/api/v1/books", s.handleListBooks)
	r.Get("/api/v1/books/search", s.handleSearchBooks)
	r.Get("/api/v1/books/{id}", s.handleGetBook)
	r.Post("/api/v1/books", s.handleCreateBook)
	r.Post("/api/v1/users", s.handleCreateUser)
	r.Post("/api/v1/ratings", s.handleUpsertRating)
	r.Get("/api/v1/ratings/{user_id}", s.handleListRatings)
	r.Post("/api/v1/reload", s.handleReload)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
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
