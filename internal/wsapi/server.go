// Package wsapi serves game sessions over a websocket and exposes the
// finished-game archive over plain HTTP.
package wsapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-reversi/internal/adapter/presenter"
	"github.com/park285/cheese-reversi/internal/game"
	"github.com/park285/cheese-reversi/internal/msgcat"
	"github.com/park285/cheese-reversi/internal/repository"
	"github.com/park285/cheese-reversi/pkg/reversidto"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultGamesLimit   = 20
	maxGamesLimit       = 100
)

// SessionFactory builds a fresh session for one connection.
type SessionFactory func() (*game.Session, error)

type Config struct {
	Sessions SessionFactory
	Archive  repository.Repository
	// Defaults fill the game options a start command leaves empty.
	Defaults       game.Options
	Messages       *msgcat.Catalog
	Logger         *zap.Logger
	PingInterval   time.Duration
	OriginPatterns []string
}

type Server struct {
	sessions     SessionFactory
	archive      repository.Repository
	defaults     game.Options
	messages     *msgcat.Catalog
	logger       *zap.Logger
	pingInterval time.Duration
	origins      []string
	mux          *http.ServeMux
}

func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("wsapi: session factory is required")
	}
	s := &Server{
		sessions:     cfg.Sessions,
		archive:      cfg.Archive,
		defaults:     cfg.Defaults,
		messages:     cfg.Messages,
		logger:       cfg.Logger,
		pingInterval: cfg.PingInterval,
		origins:      cfg.OriginPatterns,
		mux:          http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.pingInterval <= 0 {
		s.pingInterval = defaultPingInterval
	}
	s.mux.HandleFunc("GET /ws", s.handleSocket)
	s.mux.HandleFunc("GET /games", s.handleRecentGames)
	s.mux.HandleFunc("GET /games/{id}", s.handleGame)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecentGames(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusOK, []*reversidto.Game{})
		return
	}
	limit := defaultGamesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "badRequest", "limit must be a positive integer")
			return
		}
		limit = min(n, maxGamesLimit)
	}
	games, err := s.archive.RecentGames(r.Context(), limit)
	if err != nil {
		s.logger.Error("recent_games_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "archive unavailable")
		return
	}
	out := make([]*reversidto.Game, 0, len(games))
	for _, g := range games {
		out = append(out, presenter.ToDTOGame(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "badRequest", "invalid game id")
		return
	}
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "gameNotFound", "")
		return
	}
	g, err := s.archive.GetGame(r.Context(), id)
	if err != nil {
		s.logger.Error("get_game_failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "archive unavailable")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "gameNotFound", "")
		return
	}
	writeJSON(w, http.StatusOK, presenter.ToDTOGame(g))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, reversidto.DomainError{Code: code, Message: message})
}
