// Package server assembles the chi router: CORS, client-IP capture, the
// public account routes, and the bearer-authenticated profile routes.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"account-service/internal/account/handler"
	"account-service/internal/security"
	"account-service/internal/server/middleware"
)

// NewRouter builds the HTTP route tree.
func NewRouter(h *handler.Handler, tokens *security.TokenProvider) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RecordClientIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		// Public account flows.
		r.Post("/users", h.Register)
		r.Post("/users/activate", h.Activate)
		r.Post("/users/activation/resend", h.ResendActivation)
		r.Post("/users/login", h.Login)
		r.Post("/users/two-factor/verify", h.VerifyTwoFactor)
		r.Post("/users/two-factor/resend", h.ResendTwoFactor)
		r.Post("/users/password/forgot", h.RequestPasswordReset)
		r.Post("/users/password/reset", h.ResetForgottenPassword)
		r.Post("/tokens/refresh", h.Refresh)

		// Authenticated profile routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(tokens))
			r.Get("/users/me", h.Profile)
			r.Delete("/users/me", h.Delete)
			r.Post("/users/me/password", h.ResetPassword)
			r.Post("/users/me/two-factor", h.ToggleTwoFactor)
		})
	})

	return r
}
