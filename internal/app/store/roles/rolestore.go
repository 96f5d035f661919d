// internal/app/store/roles/rolestore.go
package rolestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the roles collection name.
const Collection = "roles"

// ErrNotFound is returned when no role matches.
var ErrNotFound = errors.New("role not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// GetByID loads a role by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Role, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByName loads a role by its unique name.
func (s *Store) GetByName(ctx context.Context, name string) (models.Role, error) {
	return s.findOne(ctx, bson.M{"name": name})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Role, error) {
	var r models.Role
	if err := s.c.FindOne(ctx, filter).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Role{}, ErrNotFound
		}
		return models.Role{}, err
	}
	return r, nil
}

// List returns every role ordered by name.
func (s *Store) List(ctx context.Context) ([]models.Role, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Role
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Seed upserts the built-in roles so their permission sets match the
// authorization matrix. Existing role ids are preserved. Safe to run on
// every start.
func Seed(ctx context.Context, db *mongo.Database) error {
	c := db.Collection(Collection)
	now := time.Now().UTC()

	for _, name := range authz.RoleNames {
		_, err := c.UpdateOne(ctx,
			bson.M{"name": name},
			bson.M{
				"$set": bson.M{
					"permissions": authz.PermissionsFor(name),
					"updated_at":  now,
				},
				"$setOnInsert": bson.M{
					"_id":        primitive.NewObjectID(),
					"name":       name,
					"created_at": now,
				},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
