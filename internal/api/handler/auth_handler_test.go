package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/technotronz/portal-api/internal/api/middleware"
	"github.com/technotronz/portal-api/internal/core/domain"
	"github.com/technotronz/portal-api/pkg/session"
)

type stubAuthService struct {
	registerFn    func(ctx context.Context, name, email, password string) (string, *domain.User, error)
	loginFn       func(ctx context.Context, email, password string) (string, *domain.User, error)
	currentUserFn func(ctx context.Context, userID string) (*domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, name, email, password string) (string, *domain.User, error) {
	return s.registerFn(ctx, name, email, password)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.currentUserFn(ctx, userID)
}

func (s *stubAuthService) CompleteRegistration(context.Context, string, domain.Profile) (string, *domain.User, error) {
	return "", nil, domain.ErrUserNotFound
}

func (s *stubAuthService) ForgotPassword(context.Context, string) error { return nil }

func (s *stubAuthService) ResetPassword(context.Context, string, string, string) error { return nil }

func newAuthTestContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(_ context.Context, name, email, password string) (string, *domain.User, error) {
			if name != "Alice" || email != "alice@example.com" {
				t.Fatalf("unexpected args: %s %s", name, email)
			}
			return "signed-token", &domain.User{ID: "u1", Name: name, Email: email, TzID: "TZ26-0A1B2C"}, nil
		},
	}
	h := NewAuthHandler(stub, "secret", false)

	c, rec := newAuthTestContext(t, http.MethodPost, "/api/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"pass123"}`)

	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	cookie := findCookie(rec, middleware.SessionCookie)
	if cookie == nil {
		t.Fatalf("expected session cookie to be set")
	}
	if cookie.Value != "signed-token" || !cookie.HttpOnly || cookie.Path != "/" {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}
	// Browser-session cookie: the token expires on its own, the cookie
	// must not outlive the browser.
	if cookie.MaxAge != 0 || !cookie.Expires.IsZero() {
		t.Fatalf("session cookie must not carry MaxAge/Expires: %+v", cookie)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["tz_id"] != "TZ26-0A1B2C" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, string, string, string) (string, *domain.User, error) {
			return "", nil, domain.ErrUserExists
		},
	}
	h := NewAuthHandler(stub, "secret", false)

	c, rec := newAuthTestContext(t, http.MethodPost, "/api/auth/register",
		`{"name":"Bob","email":"bob@example.com","password":"pass123"}`)

	_ = h.Register(c)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, string, string, string) (string, *domain.User, error) {
			t.Fatalf("should not be called")
			return "", nil, nil
		},
	}
	h := NewAuthHandler(stub, "secret", false)

	c, rec := newAuthTestContext(t, http.MethodPost, "/api/auth/register", `{"name":"Bob"}`)
	_ = h.Register(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, domain.ErrInvalidCredentials
		},
	}
	h := NewAuthHandler(stub, "secret", false)

	c, rec := newAuthTestContext(t, http.MethodPost, "/api/auth/login",
		`{"email":"a@b.com","password":"wrong"}`)

	_ = h.Login(c)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if findCookie(rec, middleware.SessionCookie) != nil {
		t.Fatalf("failed login must not set a session cookie")
	}
}

func TestAuthHandler_Login_UnknownAccountIndistinguishable(t *testing.T) {
	wrongPass := &stubAuthService{
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, domain.ErrInvalidCredentials
		},
	}
	unknown := &stubAuthService{
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, domain.ErrUserNotFound
		},
	}

	var bodies []string
	for _, stub := range []*stubAuthService{wrongPass, unknown} {
		h := NewAuthHandler(stub, "secret", false)
		c, rec := newAuthTestContext(t, http.MethodPost, "/api/auth/login",
			`{"email":"a@b.com","password":"x"}`)
		_ = h.Login(c)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		bodies = append(bodies, rec.Body.String())
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("wrong password and unknown account must answer identically: %q vs %q", bodies[0], bodies[1])
	}
}

func TestAuthHandler_Session_NoCookie(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, "secret", false)

	c, rec := newAuthTestContext(t, http.MethodGet, "/api/auth/session", "")
	if err := h.Session(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"user":null`) {
		t.Fatalf("expected null user, got %s", rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("session response must be uncacheable, got %q", cc)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("session read must never set cookies")
	}
}

func TestAuthHandler_Session_ValidToken(t *testing.T) {
	token, err := session.Mint([]byte("secret"), "u1", "alice@example.com", true, time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	stub := &stubAuthService{
		currentUserFn: func(_ context.Context, userID string) (*domain.User, error) {
			if userID != "u1" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			return &domain.User{ID: "u1", Email: "alice@example.com", Name: "Alice"}, nil
		},
	}
	h := NewAuthHandler(stub, "secret", false)

	c, rec := newAuthTestContext(t, http.MethodGet, "/api/auth/session", "")
	c.Request().AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})

	if err := h.Session(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"u1"`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthHandler_Session_BadToken(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, "secret", false)

	c, rec := newAuthTestContext(t, http.MethodGet, "/api/auth/session", "")
	c.Request().AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "tampered"})

	if err := h.Session(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"user":null`) {
		t.Fatalf("bad token must yield 200 with null user, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthHandler_Logout_ScrubsAllCookies(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, "secret", false)

	c, rec := newAuthTestContext(t, http.MethodPost, "/api/auth/logout", "")
	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	expired := map[string]bool{}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			expired[cookie.Name] = true
		}
	}
	if !expired[middleware.SessionCookie] {
		t.Fatalf("logout must expire the session cookie")
	}
	for _, name := range middleware.LegacySessionCookies {
		if !expired[name] {
			t.Fatalf("logout must expire legacy cookie %s", name)
		}
	}
}
