package ports

import (
	"context"

	"github.com/technotronz/portal-api/internal/core/domain"
)

// CreateIntentInput identifies the payer and what they are paying for.
// No amount field exists on purpose: amounts are computed server-side.
type CreateIntentInput struct {
	UserID     string
	Email      string
	Name       string
	Kind       domain.PaymentKind
	WorkshopID string
}

// CreateIntentResult tells the client where to send the browser next.
type CreateIntentResult struct {
	RedirectURL string
	TxnID       string
	// Mock is true when the gateway round trip was bypassed and the
	// intent settled synchronously.
	Mock bool
}

// ReconcileOutcome classifies what a callback did to local state.
type ReconcileOutcome string

const (
	// OutcomeApplied: the intent transitioned PENDING→terminal now.
	OutcomeApplied ReconcileOutcome = "applied"
	// OutcomeReplayed: the intent was already terminal; nothing changed.
	OutcomeReplayed ReconcileOutcome = "replayed"
	// OutcomeNotFound: no intent matches the callback's txn id.
	OutcomeNotFound ReconcileOutcome = "not-found"
)

// ReconcileResult reports the terminal state reached (or found) for a
// callback, and whether this invocation performed the transition.
type ReconcileResult struct {
	Outcome ReconcileOutcome
	Status  domain.PaymentStatus
	TxnID   string
}

type PaymentService interface {
	CreateIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentResult, error)
	// VerifyCallback decrypts the opaque callback payload and reconciles it.
	VerifyCallback(ctx context.Context, data string) (*ReconcileResult, error)
	// Reconcile matches decoded callback fields to a stored intent and
	// performs the one-time state transition. Replays are no-ops.
	Reconcile(ctx context.Context, fields *CallbackFields) (*ReconcileResult, error)
	// Status is the read-only manual fallback for missing callbacks.
	Status(ctx context.Context, txnID string) (*domain.Intent, error)
	// Entitlement returns the user's paid-fees record, creating the
	// empty one on first access.
	Entitlement(ctx context.Context, userID, email string) (*domain.Entitlement, error)
}
