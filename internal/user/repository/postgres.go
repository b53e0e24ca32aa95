package repository

import (
	"context"
	"database/sql"
	"errors"

	"account-service/internal/user/domain"
)

const userColumns = `id, email, password_hash, first_name, last_name, is_active, is_superuser,
	two_factor_enabled, last_login, deleted, deleted_at, date_joined`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// Email matching is exact (case-sensitive as stored).
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	lastName := sql.NullString{String: u.LastName, Valid: u.LastName != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_active, is_superuser,
			two_factor_enabled, last_login, deleted, deleted_at, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, lastName, u.IsActive, u.IsSuperuser,
		u.TwoFactorEnabled, u.LastLogin, u.Deleted, u.DeletedAt, u.DateJoined,
	)
	return err
}

// Update persists the mutable fields of the user (password hash, lifecycle
// flags, last login). Identity fields (id, email, date_joined) never change.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	lastName := sql.NullString{String: u.LastName, Valid: u.LastName != ""}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, first_name = $3, last_name = $4, is_active = $5,
			is_superuser = $6, two_factor_enabled = $7, last_login = $8, deleted = $9, deleted_at = $10
		WHERE id = $1`,
		u.ID, u.PasswordHash, u.FirstName, lastName, u.IsActive,
		u.IsSuperuser, u.TwoFactorEnabled, u.LastLogin, u.Deleted, u.DeletedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("user not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var lastName sql.NullString
	var lastLogin, deletedAt sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &lastName, &u.IsActive, &u.IsSuperuser,
		&u.TwoFactorEnabled, &lastLogin, &u.Deleted, &deletedAt, &u.DateJoined,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.LastName = lastName.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return &u, nil
}
