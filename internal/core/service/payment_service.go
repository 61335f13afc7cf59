package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/technotronz/portal-api/internal/api/metrics"
	"github.com/technotronz/portal-api/internal/core/domain"
	"github.com/technotronz/portal-api/internal/core/ports"
)

// CallbackDeduper abstracts the Redis fast-path replay check. The
// store's terminal-state check stays authoritative; the deduper only
// spots replays early for logging and metrics.
type CallbackDeduper interface {
	Seen(ctx context.Context, txnID, statusCode string) (bool, error)
	Mark(ctx context.Context, txnID, statusCode string) error
}

// statusCodes is the fixed mapping from gateway status codes to
// terminal intent states. Unrecognized codes map to FAILED
// (fail-closed) and are counted separately for manual review.
var statusCodes = map[string]domain.PaymentStatus{
	"200":     domain.PaymentSuccess,
	"SUCCESS": domain.PaymentSuccess,
	"0":       domain.PaymentFailed,
	"400":     domain.PaymentFailed,
	"FAILED":  domain.PaymentFailed,
}

func mapStatusCode(code string) (domain.PaymentStatus, bool) {
	if status, ok := statusCodes[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return status, true
	}
	return domain.PaymentFailed, false
}

// PaymentService owns the payment intent lifecycle: creation and
// dedup of intents, the gateway hand-off, and reconciliation of
// asynchronous callbacks into exactly-once state transitions.
type PaymentService struct {
	intents      ports.PaymentRepository
	entitlements ports.EntitlementRepository
	gateway      ports.Gateway
	dedup        CallbackDeduper
	provider     string
	returnToken  string
	// mockMode settles intents synchronously without the gateway.
	// Injected at construction; never read from the environment here.
	mockMode bool
	log      zerolog.Logger
}

func NewPaymentService(
	intents ports.PaymentRepository,
	entitlements ports.EntitlementRepository,
	gateway ports.Gateway,
	dedup CallbackDeduper,
	provider, returnToken string,
	mockMode bool,
	log zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		intents:      intents,
		entitlements: entitlements,
		gateway:      gateway,
		dedup:        dedup,
		provider:     provider,
		returnToken:  returnToken,
		mockMode:     mockMode,
		log:          log,
	}
}

func (s *PaymentService) CreateIntent(ctx context.Context, in ports.CreateIntentInput) (*ports.CreateIntentResult, error) {
	var amount int
	switch in.Kind {
	case domain.KindEvent:
		amount = domain.EventFee(in.Email)
	case domain.KindWorkshop:
		fee, ok := domain.WorkshopFee(in.WorkshopID)
		if !ok {
			return nil, domain.ErrUnknownWorkshop
		}
		amount = fee
	default:
		return nil, domain.ErrInvalidKind
	}

	// Idempotent already-paid guard against the entitlement record.
	ent, err := s.entitlements.Find(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if ent != nil && ent.Paid(in.Kind, in.WorkshopID) {
		return nil, domain.ErrAlreadyPaid
	}

	// A stale PENDING intent for the same tuple would collide with the
	// gateway's fresh-txn-id requirement on retry. Delete it first.
	if err := s.intents.DeletePending(ctx, in.UserID, in.Kind, in.WorkshopID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	intent := &domain.Intent{
		UserID:     in.UserID,
		Email:      in.Email,
		Kind:       in.Kind,
		WorkshopID: in.WorkshopID,
		Amount:     amount,
		TxnID:      generateTxnID(),
		RegID:      generateRegID(),
		Status:     domain.PaymentPending,
		Provider:   s.provider,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.intents.CreateIntent(ctx, intent); err != nil {
		return nil, err
	}

	metrics.IntentsCreatedTotal.WithLabelValues(string(in.Kind)).Inc()
	s.log.Info().
		Str("txn_id", intent.TxnID).
		Str("user_id", in.UserID).
		Str("type", string(in.Kind)).
		Int("amount", amount).
		Bool("mock", s.mockMode).
		Msg("payment intent created")

	if s.mockMode {
		return s.settleMock(ctx, intent)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Participant"
	}
	encrypted, err := s.gateway.Encrypt(ctx, ports.EncryptRequest{
		RegID:       intent.RegID,
		Name:        name,
		Email:       in.Email,
		Category:    domain.GatewayCategory(in.Kind, in.WorkshopID),
		TxnID:       intent.TxnID,
		Amount:      strconv.Itoa(amount),
		ReturnToken: s.returnToken,
		Provider:    s.provider,
	})
	if err != nil {
		// No retry: the caller starts over with a fresh intent.
		return nil, err
	}

	return &ports.CreateIntentResult{
		RedirectURL: s.gateway.PayURL(encrypted),
		TxnID:       intent.TxnID,
	}, nil
}

// settleMock transitions the just-created intent straight to SUCCESS,
// bypassing the gateway round trip entirely.
func (s *PaymentService) settleMock(ctx context.Context, intent *domain.Intent) (*ports.CreateIntentResult, error) {
	if _, err := s.intents.Transition(ctx, intent.TxnID, domain.PaymentSuccess); err != nil {
		return nil, err
	}
	if err := s.applyEntitlement(ctx, intent); err != nil {
		return nil, err
	}
	metrics.CallbacksProcessedTotal.WithLabelValues("mock").Inc()
	return &ports.CreateIntentResult{
		RedirectURL: fmt.Sprintf("/payment/success?txn_id=%s&mock=true", intent.TxnID),
		TxnID:       intent.TxnID,
		Mock:        true,
	}, nil
}

func (s *PaymentService) VerifyCallback(ctx context.Context, data string) (*ports.ReconcileResult, error) {
	fields, err := s.gateway.Decrypt(ctx, data)
	if err != nil {
		metrics.CallbacksProcessedTotal.WithLabelValues("decrypt_failed").Inc()
		return nil, err
	}
	return s.Reconcile(ctx, fields)
}

func (s *PaymentService) Reconcile(ctx context.Context, fields *ports.CallbackFields) (*ports.ReconcileResult, error) {
	if s.dedup != nil {
		seen, err := s.dedup.Seen(ctx, fields.TxnID, fields.StatusCode)
		if err != nil {
			s.log.Warn().Err(err).Str("txn_id", fields.TxnID).Msg("callback dedup check failed, proceeding")
		} else if seen {
			metrics.CallbackDedupTotal.WithLabelValues("hit").Inc()
			s.log.Debug().Str("txn_id", fields.TxnID).Msg("duplicate callback detected")
		} else {
			metrics.CallbackDedupTotal.WithLabelValues("miss").Inc()
		}
	}

	intent, err := s.intents.FindByTxnID(ctx, fields.TxnID)
	if err != nil {
		if err == domain.ErrIntentNotFound {
			metrics.CallbacksProcessedTotal.WithLabelValues("not_found").Inc()
			return &ports.ReconcileResult{Outcome: ports.OutcomeNotFound, TxnID: fields.TxnID}, nil
		}
		return nil, err
	}

	// Callback replay must be a no-op: terminal states are immutable.
	if intent.Status.Terminal() {
		metrics.CallbacksProcessedTotal.WithLabelValues("replayed").Inc()
		return &ports.ReconcileResult{
			Outcome: ports.OutcomeReplayed,
			Status:  intent.Status,
			TxnID:   intent.TxnID,
		}, nil
	}

	to, known := mapStatusCode(fields.StatusCode)
	if !known {
		metrics.CallbacksProcessedTotal.WithLabelValues("unknown_code").Inc()
		s.log.Warn().
			Str("txn_id", fields.TxnID).
			Str("status_code", fields.StatusCode).
			Msg("unrecognized gateway status code, failing closed")
	}

	updated, err := s.intents.Transition(ctx, intent.TxnID, to)
	if err != nil {
		if err == domain.ErrTerminalIntent {
			// Lost a race with a concurrent callback; report its result.
			current, ferr := s.intents.FindByTxnID(ctx, intent.TxnID)
			if ferr != nil {
				return nil, ferr
			}
			metrics.CallbacksProcessedTotal.WithLabelValues("replayed").Inc()
			return &ports.ReconcileResult{
				Outcome: ports.OutcomeReplayed,
				Status:  current.Status,
				TxnID:   current.TxnID,
			}, nil
		}
		return nil, err
	}

	if to == domain.PaymentSuccess {
		if err := s.applyEntitlement(ctx, updated); err != nil {
			return nil, err
		}
	}

	if s.dedup != nil {
		if err := s.dedup.Mark(ctx, fields.TxnID, fields.StatusCode); err != nil {
			s.log.Warn().Err(err).Str("txn_id", fields.TxnID).Msg("callback dedup mark failed")
		}
	}

	metrics.CallbacksProcessedTotal.WithLabelValues(strings.ToLower(string(to))).Inc()
	s.log.Info().
		Str("txn_id", intent.TxnID).
		Str("status", string(to)).
		Msg("payment reconciled")

	return &ports.ReconcileResult{
		Outcome: ports.OutcomeApplied,
		Status:  to,
		TxnID:   intent.TxnID,
	}, nil
}

// Status is the read-only manual fallback for when a callback never
// arrives. It mutates nothing.
func (s *PaymentService) Status(ctx context.Context, txnID string) (*domain.Intent, error) {
	return s.intents.FindByTxnID(ctx, txnID)
}

// Entitlement reads the user's paid-fees record, atomically creating
// the empty one on first access.
func (s *PaymentService) Entitlement(ctx context.Context, userID, email string) (*domain.Entitlement, error) {
	return s.entitlements.FindOrCreate(ctx, userID, email, domain.EventFee(email))
}

// applyEntitlement folds a successful intent into the derived
// entitlement record. Both store operations are idempotent upserts, so
// re-applying the same intent is harmless.
func (s *PaymentService) applyEntitlement(ctx context.Context, intent *domain.Intent) error {
	switch intent.Kind {
	case domain.KindEvent:
		return s.entitlements.MarkEventPaid(ctx, intent.UserID, intent.Email, intent.Amount)
	case domain.KindWorkshop:
		return s.entitlements.AddWorkshop(ctx, intent.UserID, intent.Email, intent.WorkshopID, domain.EventFee(intent.Email))
	}
	return domain.ErrInvalidKind
}

// generateTxnID returns a globally unique external transaction id,
// fresh per attempt. Collisions are a hard error at the store.
func generateTxnID() string {
	return "TZ" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:26]
}

// generateRegID returns the registration id used for gateway correlation.
func generateRegID() string {
	return "REG" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:19]
}
