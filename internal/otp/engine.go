// Package otp generates, stores, and verifies one-time codes scoped to a user
// and purpose. Codes are 5-digit numerics, globally unique among outstanding
// codes, single-use, and expire after a caller-supplied validity window.
package otp

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"account-service/internal/otp/domain"
	"account-service/internal/otp/repository"
)

// Codes are drawn uniformly from [CodeMin, CodeMax].
const (
	CodeMin = 10000
	CodeMax = 99999
)

// Verification failures. NotFound and Mismatch share a user-facing message so
// a guesser cannot tell a stale code from a wrong one.
var (
	ErrNotFound = errors.New("invalid OTP")
	ErrMismatch = errors.New("invalid OTP")
	ErrExpired  = errors.New("OTP expired")
)

// Engine issues and verifies one-time codes against the repository.
// The random source is injected so collision-retry behavior is testable
// with a seeded generator; now is injected for expiry tests.
type Engine struct {
	repo repository.Repository
	rng  *rand.Rand
	nowF func() time.Time
}

// NewEngine returns an Engine using the given repository and random source.
// rng may be nil; a time-seeded source is used then.
func NewEngine(repo repository.Repository, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		repo: repo,
		rng:  rng,
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the engine clock. For tests.
func (e *Engine) WithNow(nowF func() time.Time) *Engine {
	e.nowF = nowF
	return e
}

// Issue supersedes any outstanding OTP for (userID, purpose) with a fresh
// globally unique code and returns the new code. The delete-old/insert-new
// pair is atomic in the store. Fails only on store unavailability.
func (e *Engine) Issue(ctx context.Context, userID string, purpose domain.Purpose) (int, error) {
	code, err := e.generateCode(ctx)
	if err != nil {
		return 0, err
	}
	o := &domain.OTP{
		Code:      code,
		UserID:    userID,
		Purpose:   purpose,
		CreatedAt: e.nowF(),
	}
	if err := e.repo.Replace(ctx, o); err != nil {
		return 0, fmt.Errorf("issue otp: %w", err)
	}
	return code, nil
}

// Verify checks the submitted code for (userID, purpose) against the
// outstanding OTP and the validity window.
// Returns ErrNotFound when no OTP is outstanding (or it was consumed by a
// concurrent request), ErrMismatch when the code differs without consuming
// the real one, ErrExpired when the window has elapsed, and nil on success,
// in which case the OTP is deleted exactly once.
func (e *Engine) Verify(ctx context.Context, userID string, purpose domain.Purpose, code int, window time.Duration) error {
	o, err := e.repo.Find(ctx, userID, purpose)
	if err != nil {
		return err
	}
	if o == nil {
		return ErrNotFound
	}
	if o.Code != code {
		return ErrMismatch
	}
	if o.ExpiredAt(e.nowF(), window) {
		return ErrExpired
	}
	consumed, err := e.repo.Consume(ctx, userID, purpose, code)
	if err != nil {
		return err
	}
	if !consumed {
		// Lost the race to another verification of the same code.
		return ErrNotFound
	}
	return nil
}

// generateCode draws codes until one does not collide with any outstanding
// code. The loop terminates on the first store error, so a failing store
// cannot spin it forever; the code space itself is effectively inexhaustible
// at this volume.
func (e *Engine) generateCode(ctx context.Context) (int, error) {
	for {
		code := CodeMin + e.rng.Intn(CodeMax-CodeMin+1)
		exists, err := e.repo.CodeExists(ctx, code)
		if err != nil {
			return 0, fmt.Errorf("generate otp code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
}
