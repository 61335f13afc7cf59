package domain

import (
	"errors"
	"time"
)

// PaymentStatus represents the lifecycle state of a payment intent.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// PaymentKind distinguishes the general event fee from a per-workshop fee.
type PaymentKind string

const (
	KindEvent    PaymentKind = "EVENT"
	KindWorkshop PaymentKind = "WORKSHOP"
)

var (
	ErrAlreadyPaid       = errors.New("fee already paid")
	ErrUnknownWorkshop   = errors.New("unknown workshop")
	ErrInvalidKind       = errors.New("invalid payment kind")
	ErrIntentNotFound    = errors.New("payment intent not found")
	ErrTxnIDCollision    = errors.New("transaction id collision")
	ErrTerminalIntent    = errors.New("intent already in terminal state")
	ErrInvalidTransition = errors.New("invalid payment status transition")

	// ErrUpstreamMalformed: the gateway returned a body that could not
	// be normalized into callback fields.
	ErrUpstreamMalformed = errors.New("gateway response malformed")
	// ErrUpstreamRejected: the gateway explicitly rejected the payload
	// (expired or invalid encrypted data). Not retryable — the caller
	// must start a fresh intent.
	ErrUpstreamRejected = errors.New("gateway rejected payload")
)

// Terminal reports whether the status admits no further transitions.
// The only legal transitions are PENDING→SUCCESS and PENDING→FAILED,
// each applied exactly once by reconciliation.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentPending && next.Terminal()
}

// Intent is a single attempted payment, tracked from creation to its
// terminal outcome. TxnID is globally unique and generated fresh per
// attempt; the amount is always computed server-side.
type Intent struct {
	ID         string        `json:"id" bson:"_id,omitempty"`
	UserID     string        `json:"user_id" bson:"user_id"`
	Email      string        `json:"email" bson:"email"`
	Kind       PaymentKind   `json:"type" bson:"type"`
	WorkshopID string        `json:"workshop_id,omitempty" bson:"workshop_id,omitempty"`
	Amount     int           `json:"amount" bson:"amount"`
	TxnID      string        `json:"txn_id" bson:"txn_id"`
	RegID      string        `json:"reg_id" bson:"reg_id"`
	Status     PaymentStatus `json:"status" bson:"status"`
	Provider   string        `json:"provider" bson:"provider"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" bson:"updated_at"`
}

// Entitlement is the durable summary of what a user has paid for,
// derived from successful intents. Exactly one record exists per user;
// it is created lazily through an atomic upsert.
type Entitlement struct {
	UserID         string   `json:"user_id" bson:"user_id"`
	Email          string   `json:"email,omitempty" bson:"email,omitempty"`
	EventFeePaid   bool     `json:"event_fee_paid" bson:"event_fee_paid"`
	EventFeeAmount int      `json:"event_fee_amount" bson:"event_fee_amount"`
	WorkshopsPaid  []string `json:"workshops_paid" bson:"workshops_paid"`
}

// HasWorkshop reports whether the given workshop is already paid for.
func (e Entitlement) HasWorkshop(workshopID string) bool {
	for _, id := range e.WorkshopsPaid {
		if id == workshopID {
			return true
		}
	}
	return false
}

// Paid reports whether the given kind/workshop combination is covered.
func (e Entitlement) Paid(kind PaymentKind, workshopID string) bool {
	switch kind {
	case KindEvent:
		return e.EventFeePaid
	case KindWorkshop:
		return e.HasWorkshop(workshopID)
	}
	return false
}
