package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/technotronz/portal-api/internal/api/middleware"
	"github.com/technotronz/portal-api/pkg/session"
)

// ctxClaims extracts the session claims injected by the access gate and
// fast-fails before any service call: presence proves the gate ran, and
// a claims value without a user id is structurally valid but
// operationally unusable — reject with 401.
func ctxClaims(c echo.Context) (*session.Claims, error) {
	claims, _ := c.Get(middleware.ClaimsKey).(*session.Claims)
	if claims == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	if claims.UserID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "token missing user identity")
	}
	return claims, nil
}
