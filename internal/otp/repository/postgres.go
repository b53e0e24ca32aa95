package repository

import (
	"context"
	"database/sql"
	"errors"

	"account-service/internal/otp/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an OTP repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Find returns the outstanding OTP for (userID, purpose), or nil if none.
func (r *PostgresRepository) Find(ctx context.Context, userID string, purpose domain.Purpose) (*domain.OTP, error) {
	var o domain.OTP
	err := r.db.QueryRowContext(ctx, `
		SELECT code, user_id, purpose, created_at FROM otps
		WHERE user_id = $1 AND purpose = $2`,
		userID, purpose,
	).Scan(&o.Code, &o.UserID, &o.Purpose, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// CodeExists reports whether any outstanding OTP holds the given code.
func (r *PostgresRepository) CodeExists(ctx context.Context, code int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM otps WHERE code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Replace deletes any outstanding OTP for (o.UserID, o.Purpose) and inserts o
// in one transaction, so a prior unconsumed code is superseded atomically.
func (r *PostgresRepository) Replace(ctx context.Context, o *domain.OTP) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM otps WHERE user_id = $1 AND purpose = $2`, o.UserID, o.Purpose,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO otps (code, user_id, purpose, created_at)
		VALUES ($1, $2, $3, $4)`,
		o.Code, o.UserID, o.Purpose, o.CreatedAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Consume deletes the outstanding OTP for (userID, purpose) only if it still
// holds the given code. The compare-and-delete is a single statement, so two
// racing verifications cannot both succeed.
func (r *PostgresRepository) Consume(ctx context.Context, userID string, purpose domain.Purpose, code int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM otps WHERE user_id = $1 AND purpose = $2 AND code = $3`,
		userID, purpose, code,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
