// internal/app/store/workspaces/workspacestore.go
package workspacestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/normalize"
	"github.com/dalemusser/teamhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the workspaces collection name.
const Collection = "workspaces"

// InviteCodeLength is the number of hex characters in an invite code.
const InviteCodeLength = 8

// inviteAttempts bounds retries when a generated code collides.
const inviteAttempts = 3

var (
	ErrNotFound            = errors.New("workspace not found")
	ErrDuplicateInviteCode = errors.New("invite code already in use")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Collection exposes the underlying collection for compensating writes.
func (s *Store) Collection() *mongo.Collection { return s.c }

// NewInviteCode returns a fresh random invite code.
func NewInviteCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:InviteCodeLength]
}

// Create inserts a workspace owned by ws.OwnerID with a freshly generated
// invite code. A colliding code is regenerated a few times before giving up.
func (s *Store) Create(ctx context.Context, ws models.Workspace) (models.Workspace, error) {
	now := time.Now().UTC()
	ws.ID = primitive.NewObjectID()
	ws.Name = normalize.Name(ws.Name)
	ws.NameCI = normalize.NameCI(ws.Name)
	ws.CreatedAt = now
	ws.UpdatedAt = now

	var err error
	for i := 0; i < inviteAttempts; i++ {
		ws.InviteCode = NewInviteCode()
		if _, err = s.c.InsertOne(ctx, ws); err == nil {
			return ws, nil
		}
		if !wafflemongo.IsDup(err) {
			return models.Workspace{}, err
		}
	}
	return models.Workspace{}, ErrDuplicateInviteCode
}

// GetByID retrieves a workspace by its ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByInviteCode resolves a workspace from its invite code.
func (s *Store) GetByInviteCode(ctx context.Context, code string) (models.Workspace, error) {
	code = normalize.InviteCode(code)
	if code == "" {
		return models.Workspace{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"invite_code": code})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Workspace, error) {
	var ws models.Workspace
	if err := s.c.FindOne(ctx, filter).Decode(&ws); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Workspace{}, ErrNotFound
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

// Exists reports whether a workspace with id exists.
func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// ResetInviteCode replaces the invite code and returns the updated workspace.
// The previous code stops working immediately.
func (s *Store) ResetInviteCode(ctx context.Context, id primitive.ObjectID) (models.Workspace, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	for i := 0; i < inviteAttempts; i++ {
		var ws models.Workspace
		err := s.c.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"invite_code": NewInviteCode(), "updated_at": time.Now().UTC()}},
			opts,
		).Decode(&ws)
		switch {
		case err == nil:
			return ws, nil
		case errors.Is(err, mongo.ErrNoDocuments):
			return models.Workspace{}, ErrNotFound
		case !wafflemongo.IsDup(err):
			return models.Workspace{}, err
		}
	}
	return models.Workspace{}, ErrDuplicateInviteCode
}

// ListByIDs returns the workspaces in ids, keyed by id. Missing ids are
// simply absent from the map.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Workspace, error) {
	out := make(map[primitive.ObjectID]models.Workspace, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var ws models.Workspace
		if err := cur.Decode(&ws); err != nil {
			return nil, err
		}
		out[ws.ID] = ws
	}
	return out, cur.Err()
}

// Summary returns the public fields of a workspace.
func (s *Store) Summary(ctx context.Context, id primitive.ObjectID) (models.WorkspaceSummary, error) {
	var sum models.WorkspaceSummary
	proj := bson.M{"_id": 1, "name": 1, "description": 1, "created_at": 1}
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(proj)).Decode(&sum)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.WorkspaceSummary{}, ErrNotFound
		}
		return models.WorkspaceSummary{}, err
	}
	return sum, nil
}

// ListOwnedBy returns every workspace owned by userID.
func (s *Store) ListOwnedBy(ctx context.Context, userID primitive.ObjectID) ([]models.Workspace, error) {
	cur, err := s.c.Find(ctx, bson.M{"owner_id": userID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Workspace
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Each streams every workspace to fn, stopping at the first error.
func (s *Store) Each(ctx context.Context, fn func(models.Workspace) error) error {
	cur, err := s.c.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var ws models.Workspace
		if err := cur.Decode(&ws); err != nil {
			return err
		}
		if err := fn(ws); err != nil {
			return err
		}
	}
	return cur.Err()
}
