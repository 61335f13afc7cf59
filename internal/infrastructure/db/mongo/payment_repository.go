package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/technotronz/portal-api/internal/core/domain"
)

const (
	paymentsCollection     = "payments"
	entitlementsCollection = "user_payments"
)

// PaymentRepository persists payment intents. The unique index on
// txn_id is what makes external-id uniqueness hold under concurrent
// creates — two racing inserts cannot both survive.
type PaymentRepository struct {
	coll *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{coll: db.Collection(paymentsCollection)}
}

func (r *PaymentRepository) CreateIntent(ctx context.Context, intent *domain.Intent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"user_id":    intent.UserID,
		"email":      intent.Email,
		"type":       intent.Kind,
		"amount":     intent.Amount,
		"txn_id":     intent.TxnID,
		"reg_id":     intent.RegID,
		"status":     intent.Status,
		"provider":   intent.Provider,
		"created_at": intent.CreatedAt,
		"updated_at": intent.UpdatedAt,
	}
	if intent.WorkshopID != "" {
		doc["workshop_id"] = intent.WorkshopID
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrTxnIDCollision
		}
		return fmt.Errorf("insert intent: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByTxnID(ctx context.Context, txnID string) (*domain.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var intent domain.Intent
	if err := r.coll.FindOne(ctx, bson.M{"txn_id": txnID}).Decode(&intent); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, fmt.Errorf("find intent: %w", err)
	}
	return &intent, nil
}

func (r *PaymentRepository) DeletePending(ctx context.Context, userID string, kind domain.PaymentKind, workshopID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"user_id": userID,
		"type":    kind,
		"status":  domain.PaymentPending,
	}
	if kind == domain.KindWorkshop {
		filter["workshop_id"] = workshopID
	}

	if _, err := r.coll.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("delete pending intents: %w", err)
	}
	return nil
}

// Transition applies PENDING→terminal in a single findOneAndUpdate so
// concurrent callbacks cannot both win.
func (r *PaymentRepository) Transition(ctx context.Context, txnID string, to domain.PaymentStatus) (*domain.Intent, error) {
	if !domain.PaymentPending.CanTransitionTo(to) {
		return nil, domain.ErrInvalidTransition
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var intent domain.Intent
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"txn_id": txnID, "status": domain.PaymentPending},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&intent)
	if err == nil {
		return &intent, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("transition intent: %w", err)
	}

	// No PENDING match: either the id is unknown or the intent is
	// already terminal. Distinguish for the caller.
	if _, ferr := r.FindByTxnID(ctx, txnID); ferr != nil {
		return nil, ferr
	}
	return nil, domain.ErrTerminalIntent
}

// EnsureIndexes creates the payments indexes, most importantly the
// unique txn_id constraint.
func (r *PaymentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "txn_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// EntitlementRepository maintains the one-per-user paid-fees summary.
// Every write goes through findOneAndUpdate with upsert, which is what
// guarantees a single record under concurrent first access.
type EntitlementRepository struct {
	coll *mongo.Collection
}

func NewEntitlementRepository(db *mongo.Database) *EntitlementRepository {
	return &EntitlementRepository{coll: db.Collection(entitlementsCollection)}
}

func (r *EntitlementRepository) FindOrCreate(ctx context.Context, userID, email string, eventFeeAmount int) (*domain.Entitlement, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ent domain.Entitlement
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": bson.M{
			"email":            email,
			"event_fee_paid":   false,
			"event_fee_amount": eventFeeAmount,
			"workshops_paid":   []string{},
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&ent)
	if err != nil {
		return nil, fmt.Errorf("upsert entitlement: %w", err)
	}
	return &ent, nil
}

// Find returns (nil, nil) when the user has no record yet.
func (r *EntitlementRepository) Find(ctx context.Context, userID string) (*domain.Entitlement, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ent domain.Entitlement
	if err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&ent); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find entitlement: %w", err)
	}
	return &ent, nil
}

func (r *EntitlementRepository) MarkEventPaid(ctx context.Context, userID, email string, amount int) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$set": bson.M{"event_fee_paid": true, "event_fee_amount": amount},
			"$setOnInsert": bson.M{
				"email":          email,
				"workshops_paid": []string{},
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mark event paid: %w", err)
	}
	return nil
}

// AddWorkshop adds the workshop to the paid set. $addToSet gives set
// semantics: re-adding on a replayed callback is a no-op.
func (r *EntitlementRepository) AddWorkshop(ctx context.Context, userID, email, workshopID string, defaultEventFee int) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$addToSet": bson.M{"workshops_paid": workshopID},
			"$setOnInsert": bson.M{
				"email":            email,
				"event_fee_paid":   false,
				"event_fee_amount": defaultEventFee,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("add workshop: %w", err)
	}
	return nil
}
