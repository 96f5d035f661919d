// internal/app/store/accounts/accountstore.go
package accountstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/teamhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection is the accounts collection name.
const Collection = "accounts"

// Providers.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

var (
	ErrNotFound  = errors.New("account not found")
	ErrDuplicate = errors.New("account already linked")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Collection exposes the underlying collection for compensating writes.
func (s *Store) Collection() *mongo.Collection { return s.c }

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case wafflemongo.IsDup(err):
		return ErrDuplicate
	default:
		return err
	}
}

// Create links a new provider account to a user.
func (s *Store) Create(ctx context.Context, a models.Account) (models.Account, error) {
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Account{}, mapErr(err)
	}
	return a, nil
}

// FindByProvider resolves an account by (provider, provider_id).
func (s *Store) FindByProvider(ctx context.Context, provider, providerID string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"provider": provider, "provider_id": providerID})
}

// FindByUser returns the user's account for provider.
func (s *Store) FindByUser(ctx context.Context, userID primitive.ObjectID, provider string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"user_id": userID, "provider": provider})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, filter).Decode(&a); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

// UpdateTokens stores fresh provider tokens. An empty refresh token keeps
// the stored one, since providers only send it on first consent.
func (s *Store) UpdateTokens(ctx context.Context, id primitive.ObjectID, t models.Tokens) error {
	set := bson.M{
		"access_token": t.AccessToken,
		"updated_at":   time.Now().UTC(),
	}
	if t.RefreshToken != "" {
		set["refresh_token"] = t.RefreshToken
	}
	if t.Expiry != nil {
		set["token_expiry"] = t.Expiry.UTC()
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountForUser returns how many accounts the user has linked.
func (s *Store) CountForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID})
}
