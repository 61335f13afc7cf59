package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/technotronz/portal-api/pkg/session"
)

var testSecret = []byte("gate-test-secret")

func runGate(t *testing.T, path string, cookie *http.Cookie) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	next := func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	}

	err := Gate(testSecret)(next)(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, reached
}

func mintCookie(t *testing.T, registrationCompleted bool) *http.Cookie {
	t.Helper()
	token, err := session.Mint(testSecret, "user_1", "alice@example.com", registrationCompleted, time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	return &http.Cookie{Name: SessionCookie, Value: token}
}

func TestGate_PublicPathsPassWithoutToken(t *testing.T) {
	paths := []string{
		"/",
		"/login",
		"/api/auth/login",
		"/api/auth/session",
		"/api/payment/verify",
		"/api/payment/check-status",
		"/payment/success",
		"/ranleeconfirmation.aspx",
		"/health",
		"/metrics",
		"/swagger/index.html",
		"/static/app.js",
		"/logo.svg",
	}
	for _, path := range paths {
		rec, reached := runGate(t, path, nil)
		if !reached {
			t.Fatalf("public path %s must reach the handler, got status %d", path, rec.Code)
		}
	}
}

func TestGate_NoToken_PageRedirectsToLogin(t *testing.T) {
	rec, reached := runGate(t, "/events", nil)
	if reached {
		t.Fatalf("protected page must not reach the handler without a token")
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc != "/login?callbackUrl=%2Fevents" {
		t.Fatalf("unexpected redirect location: %s", loc)
	}
}

func TestGate_NoToken_APIGets401(t *testing.T) {
	rec, reached := runGate(t, "/api/user/me", nil)
	if reached {
		t.Fatalf("protected api must not reach the handler without a token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGate_Rejection_ScrubsCookies(t *testing.T) {
	rec, _ := runGate(t, "/events", &http.Cookie{Name: SessionCookie, Value: "garbage"})

	expired := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			expired[c.Name] = true
		}
	}
	if !expired[SessionCookie] {
		t.Fatalf("session cookie must be expired on rejection, cookies: %+v", rec.Result().Cookies())
	}
	for _, name := range LegacySessionCookies {
		if !expired[name] {
			t.Fatalf("legacy cookie %s must be expired on rejection", name)
		}
	}
}

func TestGate_InvalidToken_Rejected(t *testing.T) {
	rec, reached := runGate(t, "/api/user/me", &http.Cookie{Name: SessionCookie, Value: "not-a-token"})
	if reached || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d (reached=%v)", rec.Code, reached)
	}

	expiredClaims := jwt.MapClaims{
		"userId":                "user_1",
		"email":                 "alice@example.com",
		"registrationCompleted": true,
		"exp":                   time.Now().Add(-time.Hour).Unix(),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	rec, reached = runGate(t, "/api/user/me", &http.Cookie{Name: SessionCookie, Value: expired})
	if reached || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d (reached=%v)", rec.Code, reached)
	}
}

func TestGate_ValidToken_Passes(t *testing.T) {
	rec, reached := runGate(t, "/api/user/me", mintCookie(t, true))
	if !reached {
		t.Fatalf("valid token must reach the handler, got status %d", rec.Code)
	}
}

func TestGate_ValidToken_ClaimsStored(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	req.AddCookie(mintCookie(t, true))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *session.Claims
	next := func(c echo.Context) error {
		got, _ = c.Get(ClaimsKey).(*session.Claims)
		return c.NoContent(http.StatusOK)
	}
	if err := Gate(testSecret)(next)(c); err != nil {
		t.Fatalf("gate returned error: %v", err)
	}
	if got == nil || got.UserID != "user_1" || got.Email != "alice@example.com" {
		t.Fatalf("claims not stored in context: %+v", got)
	}
}

func TestGate_RegistrationIncomplete(t *testing.T) {
	cookie := mintCookie(t, false)

	// API calls outside the registration flow get 403.
	rec, reached := runGate(t, "/api/user/me", cookie)
	if reached || rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for incomplete registration, got %d (reached=%v)", rec.Code, reached)
	}

	// Pages redirect to the registration form.
	rec, reached = runGate(t, "/events", cookie)
	if reached || rec.Code != http.StatusFound || rec.Header().Get("Location") != "/register" {
		t.Fatalf("expected redirect to /register, got %d -> %s", rec.Code, rec.Header().Get("Location"))
	}

	// The registration flow itself stays reachable.
	if _, reached := runGate(t, "/register", cookie); !reached {
		t.Fatalf("registration page must stay reachable while incomplete")
	}
	if _, reached := runGate(t, "/register/details", cookie); !reached {
		t.Fatalf("registration sub-pages must stay reachable while incomplete")
	}
	if _, reached := runGate(t, "/api/user/complete-registration", cookie); !reached {
		t.Fatalf("completion endpoint must stay reachable while incomplete")
	}

	// Paths that merely share the /register string prefix are not part
	// of the flow and stay gated.
	rec, reached = runGate(t, "/registrations-admin", cookie)
	if reached || rec.Code != http.StatusFound || rec.Header().Get("Location") != "/register" {
		t.Fatalf("prefix look-alike must stay gated, got %d -> %s", rec.Code, rec.Header().Get("Location"))
	}
}

func TestGate_RegistrationComplete_RedirectedAwayFromRegister(t *testing.T) {
	rec, reached := runGate(t, "/register", mintCookie(t, true))
	if reached {
		t.Fatalf("completed users must not see the registration page")
	}
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/events" {
		t.Fatalf("expected redirect to /events, got %d -> %s", rec.Code, rec.Header().Get("Location"))
	}
}
