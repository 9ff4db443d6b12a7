package repository

import (
	"context"

	"github.com/YusufStar/code-craft/internal/domain"
)

// UserRepository stores and retrieves user accounts.
type UserRepository interface {
	// FindByID returns the user with the given id, or ErrUserNotFound.
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// FindByUsername returns the user with the given username, or
	// ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByIDs returns the users matching the given ids. Missing ids are
	// silently skipped; used to resolve room participants to profiles.
	FindByIDs(ctx context.Context, ids []uint) ([]domain.User, error)

	// Save creates the user when ID is zero, updates it otherwise. Returns
	// ErrDuplicateEntry on a unique-constraint violation.
	Save(ctx context.Context, user *domain.User) error
}
