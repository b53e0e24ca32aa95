package repository

import (
	"context"

	"account-service/internal/otp/domain"
)

// Repository defines persistence for outstanding one-time codes.
//
// Replace and Consume must be atomic with respect to concurrent requests for
// the same (user, purpose) pair: the service may run on several instances, so
// serialization happens in the store, not with in-process locks.
type Repository interface {
	// Find returns the outstanding OTP for (userID, purpose), or nil if none.
	Find(ctx context.Context, userID string, purpose domain.Purpose) (*domain.OTP, error)
	// CodeExists reports whether any outstanding OTP holds the given code,
	// regardless of owner. Used for global uniqueness at generation time.
	CodeExists(ctx context.Context, code int) (bool, error)
	// Replace deletes any outstanding OTP for (o.UserID, o.Purpose) and
	// inserts o in a single transaction.
	Replace(ctx context.Context, o *domain.OTP) error
	// Consume deletes the outstanding OTP for (userID, purpose) only if it
	// still holds the given code. Returns whether a row was deleted, which
	// makes concurrent double-consumption impossible.
	Consume(ctx context.Context, userID string, purpose domain.Purpose, code int) (bool, error)
}
