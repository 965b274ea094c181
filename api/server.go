package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridmatch/gridmatch/game/pairing"
	"github.com/gridmatch/gridmatch/game/service"
)

// Version reported by the health check.
const Version = "1.0.0"

// WebSocketHandler upgrades join requests; implemented by the transport hub.
type WebSocketHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Server represents the REST API server.
type Server struct {
	service service.GameService
	ws      WebSocketHandler
	router  *mux.Router
}

// NewServer creates a new API server.
func NewServer(gameService service.GameService, ws WebSocketHandler) *Server {
	s := &Server{
		service: gameService,
		ws:      ws,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Session directory
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/find", s.handleFindSession).Methods("POST")

	// Player records
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods("GET")
	api.HandleFunc("/records/{playerID}", s.handleGetRecord).Methods("GET")
	api.HandleFunc("/records", s.handleRecordResult).Methods("POST")

	// Matchmaker
	api.HandleFunc("/matchmaker", s.handleEnqueue).Methods("POST")
	api.HandleFunc("/matchmaker/{ticket}", s.handleTicketStatus).Methods("GET")
	api.HandleFunc("/matchmaker/{ticket}", s.handleTicketCancel).Methods("DELETE")

	// WebSocket join
	if s.ws != nil {
		s.router.HandleFunc("/ws", s.ws.ServeWS)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   Version,
		"timestamp": time.Now().UnixMilli(),
	})
}

// Session handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	info, err := s.service.CreateSession(r.Context(), req.Mode)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleFindSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := s.service.FindSession(r.Context(), req.Mode)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Record handlers

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.service.Leaderboard(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": entries,
		"count":       len(entries),
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["playerID"]

	record, err := s.service.PlayerRecord(r.Context(), playerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"player_id": playerID,
		"record":    record,
	})
}

func (s *Server) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		Outcome  string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlayerID == "" {
		respondError(w, http.StatusBadRequest, "player_id is required")
		return
	}

	if err := s.service.RecordResult(r.Context(), req.PlayerID, req.Outcome); err != nil {
		if errors.Is(err, service.ErrInvalidOutcome) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Matchmaker handlers

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID   string            `json:"player_id"`
		Username   string            `json:"username"`
		Properties map[string]string `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlayerID == "" {
		respondError(w, http.StatusBadRequest, "player_id is required")
		return
	}

	ticket, err := s.service.EnqueueMatchmaker(r.Context(), req.PlayerID, req.Username, req.Properties)
	if err != nil {
		if errors.Is(err, pairing.ErrAlreadyWaiting) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"ticket": ticket})
}

func (s *Server) handleTicketStatus(w http.ResponseWriter, r *http.Request) {
	ticket := mux.Vars(r)["ticket"]

	status, err := s.service.MatchmakerStatus(r.Context(), ticket)
	if err != nil {
		if errors.Is(err, pairing.ErrTicketNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleTicketCancel(w http.ResponseWriter, r *http.Request) {
	ticket := mux.Vars(r)["ticket"]

	if err := s.service.CancelMatchmaker(r.Context(), ticket); err != nil {
		if errors.Is(err, pairing.ErrTicketNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
