package ports

import (
	"context"

	"github.com/technotronz/portal-api/internal/core/domain"
)

// PaymentRepository persists payment intents. TxnID uniqueness is
// enforced by the store (unique index), not in-process — two concurrent
// creates must not both survive with the same id.
type PaymentRepository interface {
	CreateIntent(ctx context.Context, intent *domain.Intent) error
	FindByTxnID(ctx context.Context, txnID string) (*domain.Intent, error)
	// DeletePending removes any PENDING intent for the same
	// (user, kind, workshop) tuple ahead of a retry, since the gateway
	// requires a fresh unique txn id per attempt.
	DeletePending(ctx context.Context, userID string, kind domain.PaymentKind, workshopID string) error
	// Transition applies PENDING→terminal atomically. Returns
	// domain.ErrTerminalIntent when the intent is no longer PENDING and
	// domain.ErrIntentNotFound when the txn id is unknown.
	Transition(ctx context.Context, txnID string, to domain.PaymentStatus) (*domain.Intent, error)
	EnsureIndexes(ctx context.Context) error
}

// EntitlementRepository maintains the one-per-user paid-fees summary.
// Every write is an atomic upsert; concurrent first access must never
// produce two records for the same user.
type EntitlementRepository interface {
	// FindOrCreate returns the user's record, creating the default one
	// (nothing paid, event fee precomputed from the email) when absent.
	FindOrCreate(ctx context.Context, userID, email string, eventFeeAmount int) (*domain.Entitlement, error)
	// Find returns (nil, nil) when no record exists yet.
	Find(ctx context.Context, userID string) (*domain.Entitlement, error)
	MarkEventPaid(ctx context.Context, userID, email string, amount int) error
	AddWorkshop(ctx context.Context, userID, email, workshopID string, defaultEventFee int) error
}
