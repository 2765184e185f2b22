package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Handlers exposes register/login over HTTP.
type Handlers struct {
	service *Service
	limiter *RateLimiter
}

// NewHandlers creates the credential endpoints with per-IP rate limiting.
func NewHandlers(service *Service, limiter *RateLimiter) *Handlers {
	return &Handlers{service: service, limiter: limiter}
}

// RegisterRoutes registers the unauthenticated credential endpoints.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.limiter.Wrap(h.handleRegister))
	mux.HandleFunc("POST /api/auth/login", h.limiter.Wrap(h.handleLogin))
}

type registerBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token  string      `json:"token"`
	Member *memberView `json:"member"`
}

type memberView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAuthError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, member, err := h.service.Register(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingFields):
			writeAuthError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrEmailTaken):
			writeAuthError(w, http.StatusConflict, err.Error())
		default:
			log.Error().Err(err).Msg("register failed")
			writeAuthError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeToken(w, http.StatusCreated, token, member)
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAuthError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, member, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeAuthError(w, http.StatusUnauthorized, err.Error())
			return
		}
		log.Error().Err(err).Msg("login failed")
		writeAuthError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeToken(w, http.StatusOK, token, member)
}

func writeToken(w http.ResponseWriter, status int, token string, member *models.Member) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(tokenResponse{
		Token: token,
		Member: &memberView{
			ID:    member.ID.String(),
			Name:  member.Name,
			Email: member.Email,
		},
	})
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
