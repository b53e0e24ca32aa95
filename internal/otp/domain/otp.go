package domain

import "time"

// Purpose scopes a one-time code to the flow it was issued for. A user holds
// at most one outstanding code per purpose.
type Purpose string

const (
	PurposeActivation        Purpose = "activation"
	PurposeEmailVerification Purpose = "email_veri"
	PurposeForgotPassword    Purpose = "forgot_pass"
	PurposeTwoFactor         Purpose = "two_factor"
)

// OTP is a one-time numeric code bound to a (user, purpose) pair. Consumed
// codes are deleted from the store, so every persisted OTP is outstanding.
type OTP struct {
	Code      int
	UserID    string
	Purpose   Purpose
	CreatedAt time.Time
}

// ExpiredAt reports whether the code is past the given validity window at now.
// The window is caller-supplied; purposes use different windows.
func (o *OTP) ExpiredAt(now time.Time, window time.Duration) bool {
	return now.Sub(o.CreatedAt) > window
}
