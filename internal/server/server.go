// Package server exposes the game sessions over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmforge-dev/dmforge/pkg/character"
	"github.com/dmforge-dev/dmforge/pkg/game"
	metrics "github.com/dmforge-dev/dmforge/pkg/observability"
)

// GameService is the slice of the session manager the API needs.
type GameService interface {
	CreateSession(ctx context.Context, playerNames []string) (*game.State, error)
	GetSession(ctx context.Context, sessionID string) (*game.State, error)
	SubmitAction(ctx context.Context, sessionID, playerID, message string) (*game.State, error)
	BindCharacter(ctx context.Context, sessionID, playerID, characterID string) (*game.State, error)
	ListCharacters(ctx context.Context, owner string) ([]game.CharacterSummary, error)
	LoadCharacter(ctx context.Context, characterID string) (*character.Character, error)
}

// Server routes HTTP requests to the game service
type Server struct {
	service GameService
}

// NewHandler creates the HTTP handler for the game API
func NewHandler(service GameService) http.Handler {
	s := &Server{service: service}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Post("/games", s.createGame)
	r.Get("/games/{gameID}", s.getGame)
	r.Post("/games/{gameID}/action", s.postAction)
	r.Post("/games/{gameID}/players/{playerID}/character", s.bindCharacter)
	r.Get("/characters", s.listCharacters)
	r.Get("/characters/{charID}", s.getCharacter)

	return r
}

type createGameRequest struct {
	PlayerNames []string `json:"player_names"`
}

type actionRequest struct {
	PlayerID string `json:"player_id"`
	Message  string `json:"message"`
}

type bindCharacterRequest struct {
	CharacterID string `json:"character_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	var body createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := s.service.CreateSession(r.Context(), body.PlayerNames)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"game_id": state.ID,
		"players": state.Players,
	})
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetSession(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) postAction(w http.ResponseWriter, r *http.Request) {
	var body actionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.PlayerID == "" || body.Message == "" {
		writeError(w, http.StatusBadRequest, "player_id and message are required")
		return
	}

	state, err := s.service.SubmitAction(r.Context(), chi.URLParam(r, "gameID"), body.PlayerID, body.Message)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) bindCharacter(w http.ResponseWriter, r *http.Request) {
	var body bindCharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.CharacterID == "" {
		writeError(w, http.StatusBadRequest, "character_id is required")
		return
	}

	state, err := s.service.BindCharacter(r.Context(), chi.URLParam(r, "gameID"), chi.URLParam(r, "playerID"), body.CharacterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) listCharacters(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.ListCharacters(r.Context(), r.URL.Query().Get("player"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []game.CharacterSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": summaries})
}

func (s *Server) getCharacter(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.LoadCharacter(r.Context(), chi.URLParam(r, "charID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// writeServiceError maps domain errors onto HTTP status codes
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Game not found")
	case errors.Is(err, game.ErrCharacterNotFound):
		writeError(w, http.StatusNotFound, "Character not found")
	case errors.Is(err, game.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, "Player not found")
	case errors.Is(err, game.ErrCharacterAlreadyBound):
		writeError(w, http.StatusConflict, "Player already has a character")
	case errors.Is(err, game.ErrNarratorUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Narrator is unavailable, try again later")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("response encode error: %v", err)
	}
}

// metricsMiddleware records per-route request metrics. The chi route
// pattern keeps label cardinality bounded regardless of path params.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordHTTPRequest(r.Method, pattern, strconv.Itoa(ww.Status()), time.Since(start))
	})
}
