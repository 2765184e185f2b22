package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	VerifyToken(token string) (Identity, error)
}

// Middleware enforces bearer authentication for every request except the
// listed path prefixes (credential endpoints, health checks and the
// websocket upgrade, which verifies its own handshake token).
func Middleware(verifier Verifier, skipPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range skipPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing credentials")
				return
			}

			identity, err := verifier.VerifyToken(token)
			if err != nil {
				unauthorized(w, "invalid credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
