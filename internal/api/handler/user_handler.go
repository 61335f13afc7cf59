package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/technotronz/portal-api/internal/api/middleware"
	"github.com/technotronz/portal-api/internal/core/domain"
	"github.com/technotronz/portal-api/internal/core/ports"
)

type UserHandler struct {
	authService    ports.AuthService
	paymentService ports.PaymentService
	secureCookies  bool
}

func NewUserHandler(authService ports.AuthService, paymentService ports.PaymentService, secureCookies bool) *UserHandler {
	return &UserHandler{
		authService:    authService,
		paymentService: paymentService,
		secureCookies:  secureCookies,
	}
}

type completeRegistrationRequest struct {
	CollegeName  string `json:"college_name" validate:"required"`
	MobileNumber string `json:"mobile_number" validate:"required,min=7,max=15"`
	YearOfStudy  string `json:"year_of_study"`
	Department   string `json:"department"`
}

type entitlementView struct {
	EventFeePaid   bool     `json:"event_fee_paid"`
	EventFeeAmount int      `json:"event_fee_amount"`
	WorkshopsPaid  []string `json:"workshops_paid"`
}

type meResponse struct {
	User     *userView        `json:"user"`
	Payments *entitlementView `json:"payments"`
}

func entitlementViewOf(e *domain.Entitlement) *entitlementView {
	workshops := e.WorkshopsPaid
	if workshops == nil {
		workshops = []string{}
	}
	return &entitlementView{
		EventFeePaid:   e.EventFeePaid,
		EventFeeAmount: e.EventFeeAmount,
		WorkshopsPaid:  workshops,
	}
}

// Me returns the account together with its paid-fees summary so the
// dashboard needs a single round trip.
//
// @Summary      Current account with payment summary
// @Tags         user
// @Produce      json
// @Success      200  {object}  meResponse
// @Failure      401  {object}  echo.HTTPError
// @Router       /api/user/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	user, err := h.authService.CurrentUser(c.Request().Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
		}
		return err
	}

	entitlement, err := h.paymentService.Entitlement(c.Request().Context(), user.ID, user.Email)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, meResponse{
		User:     viewOf(user),
		Payments: entitlementViewOf(entitlement),
	})
}

// PaymentStatus returns the paid-fees summary alone.
//
// @Summary      Payment summary
// @Tags         user
// @Produce      json
// @Success      200  {object}  entitlementView
// @Failure      401  {object}  echo.HTTPError
// @Router       /api/user/payment-status [get]
func (h *UserHandler) PaymentStatus(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	entitlement, err := h.paymentService.Entitlement(c.Request().Context(), claims.UserID, claims.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entitlementViewOf(entitlement))
}

// CompleteRegistration stores the participant profile and reissues the
// session cookie so the gate sees registration_completed immediately,
// without waiting for the old token to expire.
//
// @Summary      Complete registration
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        body  body      completeRegistrationRequest  true  "Profile fields"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  echo.HTTPError
// @Router       /api/user/complete-registration [post]
func (h *UserHandler) CompleteRegistration(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req completeRegistrationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	token, user, err := h.authService.CompleteRegistration(c.Request().Context(), claims.UserID, domain.Profile{
		CollegeName:  req.CollegeName,
		MobileNumber: req.MobileNumber,
		YearOfStudy:  req.YearOfStudy,
		Department:   req.Department,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
		case errors.Is(err, domain.ErrInvalidCredentials):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "college name and mobile number are required"})
		}
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, authResponse{Success: true, User: viewOf(user)})
}
