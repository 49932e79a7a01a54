// Package api exposes the HTTP interface for the profile engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/socialproof/profile-engine/internal/config"
	"github.com/socialproof/profile-engine/internal/metrics"
	"github.com/socialproof/profile-engine/internal/profile"
)

// Acquirer is the orchestrator surface the handlers need.
type Acquirer interface {
	Acquire(ctx context.Context, handle string, force bool) (profile.Result, error)
	Avatar(ctx context.Context, handle string) (string, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the orchestrator and store.
type Server struct {
	router   chi.Router
	acquirer Acquirer
	store    profile.Store
	pinger   Pinger
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. pinger may
// be nil; readyz then only reports process liveness.
func NewServer(acquirer Acquirer, store profile.Store, pinger Pinger, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		acquirer: acquirer,
		store:    store,
		pinger:   pinger,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	// Scrapes block on a real browser; the budget has to cover launch,
	// navigation and the readiness poll.
	r.Use(timeoutMiddleware(90 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey, logger))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/profile/{handle}", s.getProfile)
	r.Post("/profile/{handle}/refresh", s.refreshProfile)
	r.Get("/avatar/{handle}", s.getAvatar)
	r.Get("/profiles", s.listProfiles)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{"status": "store unreachable"})
			return
		}
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type profileResponse struct {
	Success     bool                   `json:"success"`
	Data        profile.ScrapedProfile `json:"data"`
	Cached      bool                   `json:"cached"`
	LastScraped time.Time              `json:"lastScraped"`
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	s.acquireAndWrite(w, r, false)
}

func (s *Server) refreshProfile(w http.ResponseWriter, r *http.Request) {
	s.acquireAndWrite(w, r, true)
}

func (s *Server) acquireAndWrite(w http.ResponseWriter, r *http.Request, force bool) {
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		writeError(s.logger, w, http.StatusBadRequest, "handle required")
		return
	}
	res, err := s.acquirer.Acquire(r.Context(), handle, force)
	if err != nil {
		status := http.StatusNotFound
		if !errors.Is(err, profile.ErrScrapeFailed) && !errors.Is(err, profile.ErrNotFound) {
			status = http.StatusInternalServerError
		}
		writeError(s.logger, w, status, "could not retrieve profile")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, profileResponse{
		Success:     true,
		Data:        res.Profile,
		Cached:      res.Cached,
		LastScraped: res.Profile.LastScraped,
	})
}

func (s *Server) getAvatar(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	url, err := s.acquirer.Avatar(r.Context(), handle)
	if err != nil {
		writeError(s.logger, w, http.StatusNotFound, "could not retrieve avatar")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]string{"avatarUrl": url},
	})
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListAll(r.Context())
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	if all == nil {
		all = []profile.ScrapedProfile{}
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"success": true,
		"data":    all,
	})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]any{"success": false, "error": msg})
}
