// Package handler exposes the account service over HTTP with JSON bodies.
// Service sentinels map to statuses here; handlers stay thin.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"account-service/internal/account/service"
	"account-service/internal/otp"
	"account-service/internal/server/middleware"
	userdomain "account-service/internal/user/domain"
)

// Handler serves the account endpoints.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler returns a Handler using the given service.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   int    `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email    string `json:"email"`
	OTP      int    `json:"otp"`
	Password string `json:"password"`
}

type newPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	TwoFactor   bool       `json:"two_factor_enabled"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	DateJoined  time.Time  `json:"date_joined"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *userEchoBody `json:"user,omitempty"`
}

type userEchoBody struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	IsSuperuser bool   `json:"is_superuser"`
}

// Register creates an inactive account and queues the activation email.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.svc.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"msg":   "An activation token is sent to " + user.Email + ".",
	})
}

// Activate consumes the activation code and activates the account.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Activate(r.Context(), req.Email, req.OTP); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "User account successfully activated."})
}

// ResendActivation re-issues the activation code.
func (h *Handler) ResendActivation(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ResendActivation(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Activation token sent."})
}

// Login authenticates and returns either a two-factor challenge or tokens.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.TwoFactorRequired {
		writeJSON(w, http.StatusOK, map[string]any{
			"two_factor_required": true,
			"detail":              "A two-factor OTP has been sent to your email.",
		})
		return
	}
	writeJSON(w, http.StatusOK, tokenBody(res))
}

// VerifyTwoFactor completes a challenged login.
func (h *Handler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyTwoFactor(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenBody(res))
}

// ResendTwoFactor re-issues the two-factor login code.
func (h *Handler) ResendTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ResendTwoFactor(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Two-factor OTP sent."})
}

// RequestPasswordReset issues a forgot-password code.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Password reset OTP sent."})
}

// ResetForgottenPassword consumes the forgot-password code and sets a new password.
func (h *Handler) ResetForgottenPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetForgottenPassword(r.Context(), req.Email, req.OTP, req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Password updated successfully."})
}

// ResetPassword sets a new password for the authenticated user.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.writeError(w, service.ErrUserNotFound)
		return
	}
	var req newPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), userID, req.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleTwoFactor flips the two-factor flag for the authenticated user.
func (h *Handler) ToggleTwoFactor(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.writeError(w, service.ErrUserNotFound)
		return
	}
	enabled, err := h.svc.ToggleTwoFactor(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"two_factor_enabled": enabled})
}

// Profile returns the authenticated user's account record.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.writeError(w, service.ErrUserNotFound)
		return
	}
	user, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userBody(user))
}

// Delete soft-deletes the authenticated user's account.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.writeError(w, service.ErrUserNotFound)
		return
	}
	if err := h.svc.Delete(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh re-mints an access/refresh pair from a valid refresh token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return false
	}
	return true
}

// writeError maps service and OTP sentinels to HTTP statuses. Unknown errors
// are store failures: logged and returned as a bare 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEmailInUse),
		errors.Is(err, service.ErrAlreadyActive),
		errors.Is(err, service.ErrAlreadyDeleted),
		errors.Is(err, service.ErrTwoFactorDisabled):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrAccountDeleted),
		errors.Is(err, service.ErrNotActive):
		status = http.StatusForbidden
	case errors.Is(err, otp.ErrNotFound),
		errors.Is(err, otp.ErrMismatch),
		errors.Is(err, otp.ErrExpired),
		errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenBody(res *service.LoginResult) tokenResponse {
	body := tokenResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}
	if res.User != nil {
		body.User = &userEchoBody{
			ID:          res.User.ID,
			Email:       res.User.Email,
			FirstName:   res.User.FirstName,
			LastName:    res.User.LastName,
			IsSuperuser: res.User.IsSuperuser,
		}
	}
	return body
}

func userBody(u *userdomain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		TwoFactor:   u.TwoFactorEnabled,
		LastLogin:   u.LastLogin,
		DateJoined:  u.DateJoined,
	}
}
