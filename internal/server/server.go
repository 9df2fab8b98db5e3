// Package server provides the HTTP REST API for the nutrition catalog.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bh-srinivasan/nutri-tracker/internal/config"
	"github.com/bh-srinivasan/nutri-tracker/internal/db"
	"github.com/bh-srinivasan/nutri-tracker/internal/export"
	"github.com/bh-srinivasan/nutri-tracker/internal/jobs"
	"github.com/bh-srinivasan/nutri-tracker/internal/server/middleware"
	"github.com/bh-srinivasan/nutri-tracker/internal/server/ratelimit"
)

// Server represents the HTTP server and its background machinery.
type Server struct {
	httpServer  *http.Server
	db          *db.DB
	cfg         *config.Config
	log         *slog.Logger
	executor    *jobs.Executor
	exporter    *export.Exporter
	sweeper     *jobs.Sweeper
	cron        *cron.Cron
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
}

// New creates a server wired to the database and background executor.
func New(cfg *config.Config, log *slog.Logger) (*Server, error) {
	database, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Server{
		db:          database,
		cfg:         cfg,
		log:         log,
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		jwtService:  NewJWTService(cfg.JWT),
	}

	s.executor = jobs.NewExecutor(database, int64(cfg.MaxConcurrentJobs), log)
	s.exporter = export.NewExporter(database, cfg.ExportDir, cfg.ExportRetention, log)
	s.sweeper = jobs.NewSweeper(database, log)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  60 * time.Second, // uploads can be slow over bad links
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// routes builds the router. Everything under /api/v1 requires a valid
// bearer token; health is open.
func (s *Server) routes() http.Handler {
	api := http.NewServeMux()

	// Ingestion
	api.HandleFunc("POST /api/v1/foods/import", s.handleImportFoods)
	api.HandleFunc("POST /api/v1/foods/validate", s.handleValidateFoods)
	api.HandleFunc("POST /api/v1/servings/import", s.handleImportServings)

	// Jobs
	api.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	api.HandleFunc("GET /api/v1/jobs/{id}", s.handleGetJob)
	api.HandleFunc("GET /api/v1/jobs/{id}/details", s.handleGetJobDetails)

	// Exports
	api.HandleFunc("POST /api/v1/exports", s.handleCreateExport)
	api.HandleFunc("GET /api/v1/exports/{id}/download", s.handleDownloadExport)

	// Catalog reads and meal logging
	api.HandleFunc("GET /api/v1/foods/{id}/nutrition", s.handleFoodNutrition)
	api.HandleFunc("GET /api/v1/foods/{id}/servings", s.handleListFoodServings)
	api.HandleFunc("GET /api/v1/categories", s.handleListCategories)
	api.HandleFunc("GET /api/v1/units", s.handleListUnits)
	api.HandleFunc("POST /api/v1/meals", s.handleCreateMeal)
	api.HandleFunc("GET /api/v1/meals", s.handleListMeals)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/api/v1/", middleware.Auth(s.jwtService.AsTokenValidator())(api))
	return mux
}

// Start begins listening and blocks until an interrupt, then shuts down
// gracefully: stop accepting requests, wait for running jobs, close the
// pool.
func (s *Server) Start() error {
	c, err := s.sweeper.Schedule(s.cfg.SweepSchedule)
	if err != nil {
		return err
	}
	s.cron = c

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		s.log.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.cron.Stop()
	s.rateLimiter.Stop()
	s.executor.Wait()
	s.db.Close()
	s.log.Info("server stopped")
	return nil
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit enforces per-client request budgets.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
		}

		if !allowed {
			retryAfter := int(info.RetryAfter.Seconds())
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			s.log.Warn("rate limit exceeded", "client", clientID, "path", r.URL.Path)
			s.jsonResponse(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "Rate limit exceeded. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration", time.Since(start))
	})
}

// extractClientID identifies the client for rate limiting. Uses the
// connection address; X-Forwarded-For is deliberately not trusted here.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("error encoding JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
