package groups

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/focuspact/focuspact/go/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service exposes group and membership operations over HTTP.
type Service struct {
	app *App
}

// NewService creates the groups HTTP service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers the group endpoints. All routes expect an
// authenticated identity in the request context.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/groups", s.handleCreate)
	mux.HandleFunc("POST /api/groups/join", s.handleJoin)
	mux.HandleFunc("GET /api/groups/mine", s.handleMine)
	mux.HandleFunc("GET /api/groups/preferred", s.handlePreferred)
	mux.HandleFunc("POST /api/groups/active", s.handleSetActive)
	mux.HandleFunc("GET /api/groups/{groupID}", s.handleDetail)
	mux.HandleFunc("GET /api/groups/{groupID}/leaderboard", s.handleLeaderboard)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeGroupError(w, http.StatusBadRequest, "group name is required")
		return
	}

	group, membership, err := s.app.CreateGroup(r.Context(), body.Name, identity.MemberID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeGroupJSON(w, http.StatusCreated, map[string]any{"group": group, "membership": membership})
}

func (s *Service) handleJoin(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		writeGroupError(w, http.StatusBadRequest, "invite code is required")
		return
	}

	group, membership, err := s.app.JoinByInviteCode(r.Context(), body.Code, identity.MemberID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeGroupJSON(w, http.StatusOK, map[string]any{"group": group, "membership": membership})
}

func (s *Service) handleMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	memberships, err := s.app.MyGroups(r.Context(), identity.MemberID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeGroupJSON(w, http.StatusOK, memberships)
}

func (s *Service) handlePreferred(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	groupID, found, err := s.app.PreferredGroup(r.Context(), identity.MemberID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !found {
		writeGroupJSON(w, http.StatusOK, map[string]any{"group_id": nil})
		return
	}

	writeGroupJSON(w, http.StatusOK, map[string]any{"group_id": groupID})
}

func (s *Service) handleSetActive(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		GroupID uuid.UUID `json:"group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.GroupID == uuid.Nil {
		writeGroupError(w, http.StatusBadRequest, "group_id is required")
		return
	}

	if err := s.app.SetActiveGroup(r.Context(), identity.MemberID, body.GroupID); err != nil {
		writeAppError(w, err)
		return
	}

	writeGroupJSON(w, http.StatusOK, map[string]any{"ok": true, "group_id": body.GroupID})
}

func (s *Service) handleDetail(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}

	detail, err := s.app.GroupDetail(r.Context(), groupID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeGroupJSON(w, http.StatusOK, detail)
}

func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}

	rows, err := s.app.Leaderboard(r.Context(), groupID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeGroupJSON(w, http.StatusOK, map[string]any{
		"group_id": groupID,
		"total":    len(rows),
		"rows":     rows,
	})
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeGroupError(w, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, false
	}
	return identity, true
}

func pathGroupID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	groupID, err := uuid.Parse(r.PathValue("groupID"))
	if err != nil {
		writeGroupError(w, http.StatusBadRequest, "invalid group id")
		return uuid.Nil, false
	}
	return groupID, true
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound), errors.Is(err, ErrInvalidInviteCode):
		writeGroupError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotMember):
		writeGroupError(w, http.StatusForbidden, err.Error())
	default:
		log.Error().Err(err).Msg("group operation failed")
		writeGroupError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeGroupJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeGroupError(w http.ResponseWriter, status int, message string) {
	writeGroupJSON(w, status, map[string]string{"message": message})
}
