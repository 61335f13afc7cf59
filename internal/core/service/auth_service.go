package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/technotronz/portal-api/internal/core/domain"
	"github.com/technotronz/portal-api/internal/core/ports"
	"github.com/technotronz/portal-api/pkg/session"
)

const (
	minPasswordLen = 6
	resetTokenTTL  = time.Hour
)

// AuthService implements account registration, login, profile
// completion, and the password-reset flow.
type AuthService struct {
	users      ports.UserRepository
	resets     ports.ResetTokenRepository
	mailer     ports.Mailer
	jwtSecret  []byte
	tokenTTL   time.Duration
	appBaseURL string
	log        zerolog.Logger
}

func NewAuthService(
	users ports.UserRepository,
	resets ports.ResetTokenRepository,
	mailer ports.Mailer,
	jwtSecret string,
	tokenTTL time.Duration,
	appBaseURL string,
	log zerolog.Logger,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = session.DefaultTTL
	}
	return &AuthService{
		users:      users,
		resets:     resets,
		mailer:     mailer,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		log:        log,
	}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (string, *domain.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}
	if len(password) < minPasswordLen {
		return "", nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Email:                 email,
		PasswordHash:          string(hash),
		Name:                  name,
		TzID:                  generateTzID(),
		RegistrationCompleted: false,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return "", nil, err
	}

	token, err := session.Mint(s.jwtSecret, created.ID, created.Email, created.RegistrationCompleted, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("tz_id", created.TzID).Msg("account registered")
	return token, created, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := session.Mint(s.jwtSecret, user.ID, user.Email, user.RegistrationCompleted, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

// CompleteRegistration stores the profile and reissues the session
// token: the registration flag lives inside the token, so without a
// fresh one the gate would keep bouncing the user until re-login.
func (s *AuthService) CompleteRegistration(ctx context.Context, userID string, profile domain.Profile) (string, *domain.User, error) {
	if profile.CollegeName == "" || profile.MobileNumber == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.CompleteProfile(ctx, userID, profile)
	if err != nil {
		return "", nil, err
	}

	token, err := session.Mint(s.jwtSecret, user.ID, user.Email, user.RegistrationCompleted, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("registration completed")
	return token, user, nil
}

// ForgotPassword creates a reset token and mails the link. A missing
// account still reports success so the endpoint cannot be used to
// probe which emails are registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return nil
		}
		return err
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return err
	}
	secret := hex.EncodeToString(secretBytes)

	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	// Replace is delete-before-insert: issuing a new token invalidates
	// every prior one for this user.
	if err := s.resets.Replace(ctx, &domain.ResetToken{
		UserID:     user.ID,
		SecretHash: string(secretHash),
		ExpiresAt:  time.Now().UTC().Add(resetTokenTTL),
	}); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s&email=%s",
		s.appBaseURL, secret, url.QueryEscape(user.Email))

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, resetURL); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("reset mail delivery failed")
		return err
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, email, secret, newPassword string) error {
	email = normalizeEmail(email)
	if email == "" || secret == "" || newPassword == "" {
		return domain.ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLen {
		return domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return domain.ErrResetTokenInvalid
		}
		return err
	}

	token, err := s.resets.Find(ctx, user.ID)
	if err != nil {
		return err
	}
	if token.Expired(time.Now().UTC()) {
		return domain.ErrResetTokenInvalid
	}
	if bcrypt.CompareHashAndPassword([]byte(token.SecretHash), []byte(secret)) != nil {
		return domain.ErrResetTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	// Single use: consume the token once the password has changed.
	if err := s.resets.Delete(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to consume reset token")
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateTzID returns a fest participant id in the format TZ26-XXXXXX.
func generateTzID() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("TZ26-%06X", time.Now().UnixNano()&0xFFFFFF)
	}
	return fmt.Sprintf("TZ26-%06X", b)
}
