package repository

import (
	"context"

	"account-service/internal/user/domain"
)

// Repository defines persistence for users. Lookups return (nil, nil) when no
// row matches; errors are reserved for store failures.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
}
