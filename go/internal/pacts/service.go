package pacts

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/focuspact/focuspact/go/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service exposes pact operations over HTTP.
type Service struct {
	app *App
}

// NewService creates the pacts HTTP service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers the pact endpoints.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/pacts", s.handleCreate)
	mux.HandleFunc("PATCH /api/pacts/{pactID}", s.handleUpdate)
	mux.HandleFunc("GET /api/groups/{groupID}/pact", s.handleActive)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writePactError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var input PactInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writePactError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pact, err := s.app.CreatePact(r.Context(), identity.MemberID, input)
	if err != nil {
		writePactAppError(w, err)
		return
	}

	writePactJSON(w, http.StatusCreated, pact)
}

func (s *Service) handleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writePactError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	pactID, err := uuid.Parse(r.PathValue("pactID"))
	if err != nil {
		writePactError(w, http.StatusBadRequest, "invalid pact id")
		return
	}

	var input PactInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writePactError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pact, err := s.app.UpdatePact(r.Context(), identity.MemberID, pactID, input)
	if err != nil {
		writePactAppError(w, err)
		return
	}

	writePactJSON(w, http.StatusOK, pact)
}

func (s *Service) handleActive(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writePactError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	groupID, err := uuid.Parse(r.PathValue("groupID"))
	if err != nil {
		writePactError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	pact, err := s.app.ActivePact(r.Context(), identity.MemberID, groupID)
	if err != nil {
		writePactAppError(w, err)
		return
	}

	writePactJSON(w, http.StatusOK, pact)
}

func writePactAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidPact):
		writePactError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotMember):
		writePactError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrPactNotFound):
		writePactError(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Msg("pact operation failed")
		writePactError(w, http.StatusInternalServerError, "internal error")
	}
}

func writePactJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writePactError(w http.ResponseWriter, status int, message string) {
	writePactJSON(w, status, map[string]string{"message": message})
}
