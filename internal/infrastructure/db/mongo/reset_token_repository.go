package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/technotronz/portal-api/internal/core/domain"
)

const resetTokensCollection = "password_reset_tokens"

type ResetTokenRepository struct {
	coll *mongo.Collection
}

func NewResetTokenRepository(db *mongo.Database) *ResetTokenRepository {
	return &ResetTokenRepository{coll: db.Collection(resetTokensCollection)}
}

type mongoResetToken struct {
	UserID     string    `bson:"user_id"`
	SecretHash string    `bson:"secret_hash"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

// Replace deletes every prior token for the owner before inserting the
// new one, keeping at most one active token per user.
func (r *ResetTokenRepository) Replace(ctx context.Context, token *domain.ResetToken) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.coll.DeleteMany(ctx, bson.M{"user_id": token.UserID}); err != nil {
		return fmt.Errorf("delete prior reset tokens: %w", err)
	}

	_, err := r.coll.InsertOne(ctx, mongoResetToken{
		UserID:     token.UserID,
		SecretHash: token.SecretHash,
		ExpiresAt:  token.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

func (r *ResetTokenRepository) Find(ctx context.Context, userID string) (*domain.ResetToken, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mt mongoResetToken
	if err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&mt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return &domain.ResetToken{
		UserID:     mt.UserID,
		SecretHash: mt.SecretHash,
		ExpiresAt:  mt.ExpiresAt,
	}, nil
}

func (r *ResetTokenRepository) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}
