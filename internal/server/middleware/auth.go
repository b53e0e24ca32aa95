// Package middleware provides HTTP middleware: bearer-token authentication
// and request context accessors.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"account-service/internal/security"
)

// RequireAuth validates the Bearer access token and puts the subject's user
// id into the request context. Requests without a valid token get a 401.
func RequireAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				unauthorized(w)
				return
			}
			sub, err := tokens.ValidateAccess(strings.TrimPrefix(authz, prefix))
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub.ID)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": "invalid or missing access token"})
}

// RecordClientIP stores the caller address in the request context so the
// audit logger can read it without a *http.Request.
func RecordClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ClientIP(r))))
	})
}

// ClientIP extracts the caller address for audit entries, preferring
// X-Forwarded-For when a proxy set it.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
