package domain

import (
	"errors"
	"time"
)

// User is the core account entity. Accounts are created inactive and become
// active after the activation code is consumed. Deletion is a soft delete:
// the row stays, Deleted is set, and the email remains reserved.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string // optional
	IsActive         bool
	IsSuperuser      bool
	TwoFactorEnabled bool
	LastLogin        *time.Time
	Deleted          bool
	DeletedAt        *time.Time
	DateJoined       time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.FirstName == "" {
		return errors.New("first name is required")
	}
	return nil
}

// SoftDelete marks the user deleted at the given time and deactivates it.
// A deleted user is never reactivated.
func (u *User) SoftDelete(at time.Time) {
	u.Deleted = true
	u.DeletedAt = &at
	u.IsActive = false
}
