// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection is the OAuth state collection name.
const Collection = "oauth_states"

// State is a one-time CSRF token issued when an OAuth flow starts.
type State struct {
	State     string    `bson:"state"`
	ReturnURL string    `bson:"return_url,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store manages OAuth state tokens. A TTL index on expires_at removes
// stale tokens; CleanupExpired covers the gap until the TTL monitor runs.
type Store struct {
	c *mongo.Collection
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Save stores a state token that expires after ttl.
func (s *Store) Save(ctx context.Context, state, returnURL string, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.c.InsertOne(ctx, State{
		State:     state,
		ReturnURL: returnURL,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	return err
}

// Consume validates and deletes a state token in one step, so a token can
// be used only once. valid is false for unknown or expired tokens.
func (s *Store) Consume(ctx context.Context, state string) (returnURL string, valid bool, err error) {
	if state == "" {
		return "", false, nil
	}
	var st State
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return st.ReturnURL, true, nil
}

// CleanupExpired removes expired state tokens.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
