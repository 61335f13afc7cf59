package ports

import (
	"context"

	"github.com/technotronz/portal-api/internal/core/domain"
)

type AuthService interface {
	// Register creates an account and returns a freshly minted session
	// token alongside the user.
	Register(ctx context.Context, name, email, password string) (string, *domain.User, error)
	// Login authenticates by email/password and mints a session token.
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	// CurrentUser loads the account behind a verified session.
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
	// CompleteRegistration stores the profile, marks registration done,
	// and reissues the session token so the gate sees the new flag.
	CompleteRegistration(ctx context.Context, userID string, profile domain.Profile) (string, *domain.User, error)
	// ForgotPassword issues a reset token and hands the link to the
	// mailer. Reports success even when the account does not exist.
	ForgotPassword(ctx context.Context, email string) error
	// ResetPassword consumes a valid reset token and sets the new password.
	ResetPassword(ctx context.Context, email, secret, newPassword string) error
}
