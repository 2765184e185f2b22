package focus

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/focuspact/focuspact/go/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// defaultTargetMinutes is used when a start request omits the duration.
const defaultTargetMinutes = 50

// Service exposes the session lifecycle over HTTP. The realtime gateway
// carries the presence commands; start/join/end arrive here.
type Service struct {
	coordinator *Coordinator
}

// NewService creates the focus HTTP service.
func NewService(c *Coordinator) *Service {
	return &Service{coordinator: c}
}

// RegisterRoutes registers the focus endpoints. All routes expect an
// authenticated identity in the request context.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/groups/{groupID}/focus/start", s.handleStart)
	mux.HandleFunc("POST /api/groups/{groupID}/focus/join", s.handleJoin)
	mux.HandleFunc("POST /api/groups/{groupID}/focus/end", s.handleEnd)
	mux.HandleFunc("GET /api/groups/{groupID}/focus", s.handleCurrent)
}

type startBody struct {
	TargetMinutes int    `json:"target_minutes"`
	Reward        string `json:"reward"`
	Penalty       string `json:"penalty"`
}

func (s *Service) handleStart(w http.ResponseWriter, r *http.Request) {
	identity, groupID, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	var body startBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if body.TargetMinutes == 0 {
		body.TargetMinutes = defaultTargetMinutes
	}

	session, err := s.coordinator.Start(r.Context(), groupID, identity.MemberID, StartRequest{
		TargetMinutes: body.TargetMinutes,
		Reward:        body.Reward,
		Penalty:       body.Penalty,
	})
	if err != nil {
		writeFocusError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (s *Service) handleJoin(w http.ResponseWriter, r *http.Request) {
	identity, groupID, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	remaining, err := s.coordinator.Join(r.Context(), groupID, identity.MemberID)
	if err != nil {
		writeFocusError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "remaining": remaining})
}

func (s *Service) handleEnd(w http.ResponseWriter, r *http.Request) {
	identity, groupID, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	session, points, err := s.coordinator.End(r.Context(), groupID, identity.MemberID)
	if err != nil {
		writeFocusError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session": session, "points_awarded": points})
}

func (s *Service) handleCurrent(w http.ResponseWriter, r *http.Request) {
	_, groupID, ok := s.requestContext(w, r)
	if !ok {
		return
	}

	session, remaining, err := s.coordinator.Current(r.Context(), groupID)
	if err != nil {
		writeFocusError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session": session, "remaining": remaining})
}

// requestContext resolves the authenticated identity and the group ID path
// segment, writing the error response itself when either is missing.
func (s *Service) requestContext(w http.ResponseWriter, r *http.Request) (auth.Identity, uuid.UUID, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, uuid.Nil, false
	}

	groupID, err := uuid.Parse(r.PathValue("groupID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return auth.Identity{}, uuid.Nil, false
	}

	return identity, groupID, true
}

func writeFocusError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNoActiveSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSessionActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("focus operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
