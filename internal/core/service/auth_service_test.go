package service

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/technotronz/portal-api/internal/core/domain"
	"github.com/technotronz/portal-api/pkg/session"
)

type stubUserRepo struct {
	users  map[string]*domain.User
	nextID int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	copy := cloneUser(user)
	copy.ID = fmt.Sprintf("user_%d", r.nextID)
	r.users[copy.ID] = cloneUser(copy)
	return copy, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) CompleteProfile(_ context.Context, id string, profile domain.Profile) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.CollegeName = profile.CollegeName
	u.MobileNumber = profile.MobileNumber
	u.YearOfStudy = profile.YearOfStudy
	u.Department = profile.Department
	u.RegistrationCompleted = true
	return cloneUser(u), nil
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type stubResetRepo struct {
	tokens map[string]*domain.ResetToken
}

func newStubResetRepo() *stubResetRepo {
	return &stubResetRepo{tokens: make(map[string]*domain.ResetToken)}
}

func (r *stubResetRepo) Replace(_ context.Context, token *domain.ResetToken) error {
	clone := *token
	r.tokens[token.UserID] = &clone
	return nil
}

func (r *stubResetRepo) Find(_ context.Context, userID string) (*domain.ResetToken, error) {
	if t, ok := r.tokens[userID]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, domain.ErrResetTokenInvalid
}

func (r *stubResetRepo) Delete(_ context.Context, userID string) error {
	delete(r.tokens, userID)
	return nil
}

type stubMailer struct {
	lastTo  string
	lastURL string
	sent    int
}

func (m *stubMailer) SendPasswordReset(_ context.Context, toEmail, _ string, resetURL string) error {
	m.lastTo = toEmail
	m.lastURL = resetURL
	m.sent++
	return nil
}

func newTestAuthService(users *stubUserRepo, resets *stubResetRepo, mail *stubMailer) *AuthService {
	return NewAuthService(users, resets, mail, "secret", time.Hour, "http://localhost:8080", zerolog.Nop())
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestAuthService(repo, newStubResetRepo(), &stubMailer{})

	token, user, err := svc.Register(context.Background(), "Alice", "Alice@Example.COM ", "pass123")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "pass123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pass123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if user.RegistrationCompleted {
		t.Fatalf("new account must start with registration incomplete")
	}
	if matched, _ := regexp.MatchString(`^TZ26-[0-9A-F]{6}$`, user.TzID); !matched {
		t.Fatalf("unexpected participant id format: %q", user.TzID)
	}

	claims, err := session.Verify([]byte("secret"), token)
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email {
		t.Fatalf("token claims mismatch: %+v", claims)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := newTestAuthService(newStubUserRepo(), newStubResetRepo(), &stubMailer{})

	cases := []struct{ name, email, password string }{
		{"", "a@b.com", "pass123"},
		{"Alice", "", "pass123"},
		{"Alice", "a@b.com", ""},
		{"Alice", "a@b.com", "short"},
	}
	for _, tc := range cases {
		if _, _, err := svc.Register(context.Background(), tc.name, tc.email, tc.password); err != domain.ErrInvalidCredentials {
			t.Fatalf("expected ErrInvalidCredentials for %+v, got %v", tc, err)
		}
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc := newTestAuthService(newStubUserRepo(), newStubResetRepo(), &stubMailer{})

	if _, _, err := svc.Register(context.Background(), "Bob", "bob@example.com", "pass123"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, _, err := svc.Register(context.Background(), "Bob", "BOB@example.com", "pass456"); err != domain.ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Login(t *testing.T) {
	svc := newTestAuthService(newStubUserRepo(), newStubResetRepo(), &stubMailer{})
	_, registered, err := svc.Register(context.Background(), "Carol", "carol@example.com", "s3cret99")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, user, err := svc.Login(context.Background(), " CAROL@example.com", "s3cret99")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("unexpected user: %+v", user)
	}
	if _, err := session.Verify([]byte("secret"), token); err != nil {
		t.Fatalf("login token does not verify: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "carol@example.com", "wrong"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "s3cret99"); err != domain.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_CompleteRegistration(t *testing.T) {
	svc := newTestAuthService(newStubUserRepo(), newStubResetRepo(), &stubMailer{})
	_, registered, _ := svc.Register(context.Background(), "Dave", "dave@example.com", "pass123")

	if _, _, err := svc.CompleteRegistration(context.Background(), registered.ID, domain.Profile{}); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for empty profile, got %v", err)
	}

	token, user, err := svc.CompleteRegistration(context.Background(), registered.ID, domain.Profile{
		CollegeName:  "PSG Tech",
		MobileNumber: "9876543210",
		Department:   "CSE",
	})
	if err != nil {
		t.Fatalf("complete registration failed: %v", err)
	}
	if !user.RegistrationCompleted {
		t.Fatalf("expected registration completed")
	}

	// The reissued token must carry the new flag so the access gate
	// admits the user immediately.
	claims, err := session.Verify([]byte("secret"), token)
	if err != nil {
		t.Fatalf("reissued token does not verify: %v", err)
	}
	if !claims.RegistrationCompleted {
		t.Fatalf("reissued token missing registration flag")
	}
}

func TestAuthService_ForgotPassword_UnknownEmailSilent(t *testing.T) {
	mail := &stubMailer{}
	svc := newTestAuthService(newStubUserRepo(), newStubResetRepo(), mail)

	if err := svc.ForgotPassword(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("expected silent success for unknown email, got %v", err)
	}
	if mail.sent != 0 {
		t.Fatalf("no mail should be sent for unknown email")
	}
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	users := newStubUserRepo()
	resets := newStubResetRepo()
	mail := &stubMailer{}
	svc := newTestAuthService(users, resets, mail)

	if _, _, err := svc.Register(context.Background(), "Eve", "eve@example.com", "original1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := svc.ForgotPassword(context.Background(), "eve@example.com"); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	if mail.sent != 1 || mail.lastTo != "eve@example.com" {
		t.Fatalf("expected one mail to eve, got %d to %q", mail.sent, mail.lastTo)
	}

	parsed, err := url.Parse(mail.lastURL)
	if err != nil {
		t.Fatalf("reset url unparseable: %v", err)
	}
	secret := parsed.Query().Get("token")
	if secret == "" {
		t.Fatalf("reset url missing token: %q", mail.lastURL)
	}
	if !strings.HasPrefix(mail.lastURL, "http://localhost:8080/reset-password?") {
		t.Fatalf("unexpected reset url: %q", mail.lastURL)
	}

	if err := svc.ResetPassword(context.Background(), "eve@example.com", "wrong-secret", "newpass99"); err != domain.ErrResetTokenInvalid {
		t.Fatalf("expected ErrResetTokenInvalid for wrong secret, got %v", err)
	}

	if err := svc.ResetPassword(context.Background(), "eve@example.com", secret, "newpass99"); err != nil {
		t.Fatalf("reset password failed: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "eve@example.com", "newpass99"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "eve@example.com", "original1"); err != domain.ErrInvalidCredentials {
		t.Fatalf("old password must be rejected, got %v", err)
	}

	// Single use: the consumed token must not work twice.
	if err := svc.ResetPassword(context.Background(), "eve@example.com", secret, "another99"); err != domain.ErrResetTokenInvalid {
		t.Fatalf("expected consumed token to be rejected, got %v", err)
	}
}

func TestAuthService_ResetPassword_Expired(t *testing.T) {
	users := newStubUserRepo()
	resets := newStubResetRepo()
	svc := newTestAuthService(users, resets, &stubMailer{})

	_, registered, _ := svc.Register(context.Background(), "Frank", "frank@example.com", "pass123")

	hash, _ := bcrypt.GenerateFromPassword([]byte("the-secret"), bcrypt.MinCost)
	resets.tokens[registered.ID] = &domain.ResetToken{
		UserID:     registered.ID,
		SecretHash: string(hash),
		ExpiresAt:  time.Now().UTC().Add(-time.Minute),
	}

	if err := svc.ResetPassword(context.Background(), "frank@example.com", "the-secret", "newpass99"); err != domain.ErrResetTokenInvalid {
		t.Fatalf("expected ErrResetTokenInvalid for expired token, got %v", err)
	}
}
