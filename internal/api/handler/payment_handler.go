package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/technotronz/portal-api/internal/core/domain"
	"github.com/technotronz/portal-api/internal/core/ports"
)

type PaymentHandler struct {
	paymentService ports.PaymentService
	authService    ports.AuthService
	log            zerolog.Logger
}

func NewPaymentHandler(paymentService ports.PaymentService, authService ports.AuthService, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, authService: authService, log: log}
}

type createPaymentRequest struct {
	Type       string `json:"type" validate:"required,oneof=EVENT WORKSHOP"`
	WorkshopID string `json:"workshop_id"`
}

type createPaymentResponse struct {
	RedirectURL string `json:"redirectUrl"`
	TxnID       string `json:"txn_id"`
	Mock        bool   `json:"mock,omitempty"`
}

type checkStatusResponse struct {
	Found  bool                 `json:"found"`
	TxnID  string               `json:"txn_id,omitempty"`
	Type   domain.PaymentKind   `json:"type,omitempty"`
	Amount int                  `json:"amount,omitempty"`
	Status domain.PaymentStatus `json:"status,omitempty"`
}

// Create starts a payment attempt and returns the gateway redirect URL.
//
// @Summary      Create a payment intent
// @Tags         payment
// @Accept       json
// @Produce      json
// @Param        body  body      createPaymentRequest  true  "Fee selection"
// @Success      200   {object}  createPaymentResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  echo.HTTPError
// @Failure      409   {object}  map[string]string
// @Router       /api/payment/create [post]
func (h *PaymentHandler) Create(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// The gateway receipt carries the payer's name, which the session
	// token does not. Load it from the account.
	name := ""
	if user, err := h.authService.CurrentUser(c.Request().Context(), claims.UserID); err == nil {
		name = user.Name
	}

	result, err := h.paymentService.CreateIntent(c.Request().Context(), ports.CreateIntentInput{
		UserID:     claims.UserID,
		Email:      claims.Email,
		Name:       name,
		Kind:       domain.PaymentKind(req.Type),
		WorkshopID: req.WorkshopID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyPaid):
			return c.JSON(http.StatusConflict, map[string]string{"error": "this fee is already paid"})
		case errors.Is(err, domain.ErrUnknownWorkshop):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown workshop"})
		case errors.Is(err, domain.ErrInvalidKind):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payment type"})
		}
		return err
	}

	return c.JSON(http.StatusOK, createPaymentResponse{
		RedirectURL: result.RedirectURL,
		TxnID:       result.TxnID,
		Mock:        result.Mock,
	})
}

// Verify receives the gateway's browser redirect after payment. The
// encrypted payload arrives under one of three historical parameter
// names; the handler always answers with a redirect because the caller
// is a browser mid-flight, never an API client.
//
// @Summary      Gateway payment callback
// @Tags         payment
// @Param        data      query  string  false  "Encrypted callback payload"
// @Param        Register  query  string  false  "Encrypted callback payload (legacy name)"
// @Success      302
// @Router       /api/payment/verify [get]
func (h *PaymentHandler) Verify(c echo.Context) error {
	data := callbackPayload(c)
	if data == "" {
		return c.Redirect(http.StatusFound, "/payment/failure?reason=no_data")
	}

	result, err := h.paymentService.VerifyCallback(c.Request().Context(), data)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamRejected) || errors.Is(err, domain.ErrUpstreamMalformed) {
			return c.Redirect(http.StatusFound, "/payment/failure?reason=verification_failed")
		}
		h.log.Error().Err(err).Msg("payment callback reconciliation failed")
		return c.Redirect(http.StatusFound, "/payment/failure?reason=server_error")
	}

	if result.Outcome == ports.OutcomeNotFound {
		return c.Redirect(http.StatusFound, "/payment/failure?reason=not_found")
	}

	if result.Status == domain.PaymentSuccess {
		return c.Redirect(http.StatusFound, "/payment/success?txn_id="+url.QueryEscape(result.TxnID))
	}
	return c.Redirect(http.StatusFound, "/payment/failure?reason=payment_failed&txn_id="+url.QueryEscape(result.TxnID))
}

// callbackPayload extracts the encrypted blob from whichever parameter
// name the gateway used. All three have been observed in production.
func callbackPayload(c echo.Context) string {
	for _, name := range []string{"data", "Register", "register"} {
		if v := c.QueryParam(name); v != "" {
			return v
		}
	}
	return ""
}

// CheckStatus is the read-only fallback for when the browser redirect
// never arrived. It reports the stored intent without reconciling.
//
// @Summary      Look up a payment by transaction id
// @Tags         payment
// @Produce      json
// @Param        txn_id  query     string  true  "Transaction id"
// @Success      200     {object}  checkStatusResponse
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  checkStatusResponse
// @Router       /api/payment/check-status [get]
func (h *PaymentHandler) CheckStatus(c echo.Context) error {
	txnID := c.QueryParam("txn_id")
	if txnID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "txn_id is required"})
	}

	intent, err := h.paymentService.Status(c.Request().Context(), txnID)
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			return c.JSON(http.StatusNotFound, checkStatusResponse{Found: false})
		}
		return err
	}

	return c.JSON(http.StatusOK, checkStatusResponse{
		Found:  true,
		TxnID:  intent.TxnID,
		Type:   intent.Kind,
		Amount: intent.Amount,
		Status: intent.Status,
	})
}
