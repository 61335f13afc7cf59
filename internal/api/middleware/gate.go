package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/technotronz/portal-api/internal/api/metrics"
	"github.com/technotronz/portal-api/pkg/session"
)

// SessionCookie is the credential cookie holding the signed session token.
const SessionCookie = "auth_token"

// ClaimsKey is the echo context key the gate stores verified claims under.
const ClaimsKey = "session_claims"

// LegacySessionCookies enumerates cookie names owned by the previous
// session framework. They are scrubbed on every logout/invalidation
// path so an old session can never silently re-authenticate.
var LegacySessionCookies = []string{
	"next-auth.session-token",
	"__Secure-next-auth.session-token",
	"next-auth.callback-url",
	"next-auth.csrf-token",
	"__Secure-next-auth.callback-url",
	"__Host-next-auth.csrf-token",
}

// publicPaths are exact-match routes that require no session.
var publicPaths = map[string]struct{}{
	"/":                         {},
	"/login":                    {},
	"/forgot-password":          {},
	"/reset-password":           {},
	"/about":                    {},
	"/api/auth/login":           {},
	"/api/auth/register":        {},
	"/api/auth/logout":          {},
	"/api/auth/session":         {},
	"/api/auth/forgot-password": {},
	"/api/auth/reset-password":  {},
	"/api/payment/verify":       {},
	"/api/payment/check-status": {},
	"/ranleeconfirmation.aspx":  {},
}

// publicPrefixes are route prefixes that require no session. The
// payment pages must stay public: the gateway redirects the browser
// back without our cookie guarantees.
var publicPrefixes = []string{
	"/payment/",
	"/health",
	"/metrics",
	"/swagger/",
	"/favicon",
	"/static/",
}

// staticSuffixes short-circuit the gate for asset requests.
var staticSuffixes = []string{
	".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico",
	".css", ".js", ".woff", ".woff2", ".ttf", ".eot",
}

func isPublic(path string) bool {
	if _, ok := publicPaths[path]; ok {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, suffix := range staticSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func isAPI(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// registrationExempt reports whether the path belongs to the
// registration flow itself and therefore skips the completion sub-gate.
func registrationExempt(path string) bool {
	if path == "/register" || path == "/api/user/complete-registration" {
		return true
	}
	return strings.HasPrefix(path, "/register/")
}

// Gate classifies every request as public, protected, or
// registration-gated, and enforces the session requirement before any
// handler runs. Token checks use the lite verification path — the gate
// must stay cheap enough to run per request with no caching.
//
// Every rejection clears the credential cookie set before redirecting,
// so a dead token is never left in the client to bounce the same
// rejection again.
func Gate(jwtSecret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if isPublic(path) {
				return next(c)
			}

			cookie, err := c.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				return reject(c, path, "no_token")
			}

			claims, err := session.VerifyLite(jwtSecret, cookie.Value)
			if err != nil {
				return reject(c, path, "invalid_token")
			}

			if !claims.RegistrationCompleted && !registrationExempt(path) {
				metrics.GateRejectionsTotal.WithLabelValues("registration_incomplete").Inc()
				if isAPI(path) {
					return echo.NewHTTPError(http.StatusForbidden, "registration incomplete")
				}
				return c.Redirect(http.StatusFound, "/register")
			}

			// Completed users have no business on the registration page.
			if claims.RegistrationCompleted && path == "/register" {
				return c.Redirect(http.StatusFound, "/events")
			}

			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}

func reject(c echo.Context, path, reason string) error {
	metrics.GateRejectionsTotal.WithLabelValues(reason).Inc()
	ScrubAuthCookies(c)

	if isAPI(path) {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return c.Redirect(http.StatusFound, "/login?callbackUrl="+url.QueryEscape(path))
}

// ScrubAuthCookies expires the session cookie and every legacy
// framework cookie on the response.
func ScrubAuthCookies(c echo.Context) {
	expire := func(name string, httpOnly bool) {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: httpOnly,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
		})
	}

	expire(SessionCookie, true)
	for _, name := range LegacySessionCookies {
		expire(name, false)
	}
}
