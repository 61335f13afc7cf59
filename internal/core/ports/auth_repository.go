package ports

import (
	"context"

	"github.com/technotronz/portal-api/internal/core/domain"
)

// UserRepository defines the persistence interface for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	CompleteProfile(ctx context.Context, id string, profile domain.Profile) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// ResetTokenRepository persists one-time password-reset tokens.
// Replace deletes every prior token for the owner before inserting the
// new one, so at most one token is ever active per user.
type ResetTokenRepository interface {
	Replace(ctx context.Context, token *domain.ResetToken) error
	Find(ctx context.Context, userID string) (*domain.ResetToken, error)
	Delete(ctx context.Context, userID string) error
}
