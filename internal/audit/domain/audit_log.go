package domain

import "time"

// AuditLog is one recorded account event (registration, login attempt,
// activation, password reset, deletion). Best-effort history for operators.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Actions recorded by the auth flows.
const (
	ActionRegister         = "register"
	ActionActivate         = "activate"
	ActionLoginSuccess     = "login_success"
	ActionLoginFailure     = "login_failure"
	ActionLoginChallenge   = "login_two_factor_challenge"
	ActionTwoFactorSuccess = "two_factor_success"
	ActionTwoFactorFailure = "two_factor_failure"
	ActionPasswordReset    = "password_reset"
	ActionTwoFactorToggle  = "two_factor_toggle"
	ActionAccountDeleted   = "account_deleted"
	ActionTokenRefresh     = "token_refresh"
)
