package violations

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/focuspact/focuspact/go/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service exposes violation operations over HTTP.
type Service struct {
	app *App
}

// NewService creates the violations HTTP service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers the violation endpoints.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/violations", s.handleReport)
	mux.HandleFunc("GET /api/members/{memberID}/violations", s.handleHistory)
}

func (s *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		writeViolationError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var input ReportInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeViolationError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	violation, err := s.app.Report(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidReport):
			writeViolationError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotMember):
			writeViolationError(w, http.StatusForbidden, err.Error())
		default:
			log.Error().Err(err).Msg("violation report failed")
			writeViolationError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeViolationJSON(w, http.StatusCreated, violation)
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		writeViolationError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	memberID, err := uuid.Parse(r.PathValue("memberID"))
	if err != nil {
		writeViolationError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	groupID := uuid.Nil
	if raw := r.URL.Query().Get("group_id"); raw != "" {
		groupID, err = uuid.Parse(raw)
		if err != nil {
			writeViolationError(w, http.StatusBadRequest, "invalid group id")
			return
		}
	}

	history, err := s.app.History(r.Context(), memberID, groupID)
	if err != nil {
		log.Error().Err(err).Msg("violation history lookup failed")
		writeViolationError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeViolationJSON(w, http.StatusOK, map[string]any{
		"member_id": memberID,
		"total":     len(history),
		"rows":      history,
	})
}

func writeViolationJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeViolationError(w http.ResponseWriter, status int, message string) {
	writeViolationJSON(w, status, map[string]string{"message": message})
}
