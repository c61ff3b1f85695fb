// Package api serves persisted conflict reports over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/todmy/doc-conflicts/internal/auth"
	"github.com/todmy/doc-conflicts/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// ServerConfig holds the dependencies of the API server
type ServerConfig struct {
	Runs storage.RunRepository
	// JWTSecret enables bearer-token auth on /api/v1 when set
	JWTSecret string
	// Corpus is used when a request does not name one
	Corpus string
	Logger *slog.Logger
}

type Server struct {
	router *chi.Mux
	runs   storage.RunRepository
	auth   auth.Service
	corpus string
	logger *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router: r,
		runs:   cfg.Runs,
		corpus: cfg.Corpus,
		logger: logger,
	}
	if cfg.JWTSecret != "" {
		authCfg := auth.DefaultConfig()
		authCfg.SecretKey = cfg.JWTSecret
		s.auth = auth.NewJWTService(authCfg)
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API v1
	s.router.Route("/api/v1", func(r chi.Router) {
		if s.auth != nil {
			r.Use(auth.Middleware(s.auth))
		}

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/latest", s.handleLatestRun)
			r.Get("/{runID}", s.handleGetRun)
			r.Get("/{runID}/conflicts", s.handleGetConflicts)
			r.Get("/{runID}/recommendations", s.handleGetRecommendations)
			r.Get("/{runID}/documents/{documentID}", s.handleGetDocument)
		})
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", addr, "auth", s.auth != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Helper to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
