package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/technotronz/portal-api/internal/api/middleware"
	"github.com/technotronz/portal-api/internal/core/domain"
	"github.com/technotronz/portal-api/internal/core/ports"
	"github.com/technotronz/portal-api/pkg/session"
)

type AuthHandler struct {
	authService ports.AuthService
	jwtSecret   []byte
	// secureCookies toggles the Secure flag; false outside production
	// so local HTTP works.
	secureCookies bool
}

func NewAuthHandler(authService ports.AuthService, jwtSecret string, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		jwtSecret:     []byte(jwtSecret),
		secureCookies: secureCookies,
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type userView struct {
	ID                    string `json:"id"`
	Email                 string `json:"email"`
	Name                  string `json:"name"`
	TzID                  string `json:"tz_id"`
	RegistrationCompleted bool   `json:"registration_completed"`
}

type authResponse struct {
	Success bool      `json:"success"`
	User    *userView `json:"user,omitempty"`
}

type sessionResponse struct {
	User *userView `json:"user"`
}

func viewOf(u *domain.User) *userView {
	return &userView{
		ID:                    u.ID,
		Email:                 u.Email,
		Name:                  u.Name,
		TzID:                  u.TzID,
		RegistrationCompleted: u.RegistrationCompleted,
	}
}

// setSessionCookie installs the signed token as a browser-session
// cookie: no Max-Age and no Expires on purpose, so the cookie dies with
// the browser while the token itself carries its own 30-day expiry.
func (h *AuthHandler) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register creates a new account and opens a session.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	token, user, err := h.authService.Register(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserExists):
			return c.JSON(http.StatusConflict, map[string]string{"error": "user with this email already exists"})
		case errors.Is(err, domain.ErrInvalidCredentials):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "all fields are required"})
		}
		return err
	}

	h.setSessionCookie(c, token)
	return c.JSON(http.StatusCreated, authResponse{Success: true, User: viewOf(user)})
}

// Login authenticates an account and opens a session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	token, user, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		// Wrong password and unknown account answer identically.
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		}
		return err
	}

	h.setSessionCookie(c, token)
	// A fresh login owns the session; leftovers from the old session
	// framework must not survive it.
	for _, name := range middleware.LegacySessionCookies {
		c.SetCookie(&http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}

	return c.JSON(http.StatusOK, authResponse{Success: true, User: viewOf(user)})
}

func noStore(c echo.Context) {
	h := c.Response().Header()
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
}

// Session reports who holds the current session. Strictly read-only:
// it never reissues the cookie or extends the token, and returns
// {user: null} with 200 on any verification failure.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	noStore(c)

	cookie, err := c.Cookie(middleware.SessionCookie)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusOK, sessionResponse{User: nil})
	}

	claims, err := session.Verify(h.jwtSecret, cookie.Value)
	if err != nil {
		return c.JSON(http.StatusOK, sessionResponse{User: nil})
	}

	user, err := h.authService.CurrentUser(c.Request().Context(), claims.UserID)
	if err != nil {
		return c.JSON(http.StatusOK, sessionResponse{User: nil})
	}

	return c.JSON(http.StatusOK, sessionResponse{User: viewOf(user)})
}

// Logout ends the session by scrubbing every credential cookie,
// including legacy ones.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	noStore(c)
	middleware.ScrubAuthCookies(c)
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "logged out",
	})
}

// LogoutRedirect handles browser GET logouts: scrub and bounce to login.
func (h *AuthHandler) LogoutRedirect(c echo.Context) error {
	noStore(c)
	middleware.ScrubAuthCookies(c)
	return c.Redirect(http.StatusFound, "/login")
}

// ForgotPassword issues a reset token. The response never reveals
// whether the account exists.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]string
// @Router       /api/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.authService.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "if an account exists, a password reset link has been sent",
	})
}

// ResetPassword consumes a reset token and sets the new password.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Reset token and new password"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]string
// @Router       /api/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	err := h.authService.ResetPassword(c.Request().Context(), req.Email, req.Token, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrResetTokenInvalid) || errors.Is(err, domain.ErrInvalidCredentials) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "reset token invalid or expired"})
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "password updated"})
}
