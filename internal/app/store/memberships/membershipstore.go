// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/teamhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the memberships collection name.
const Collection = "members"

var (
	ErrNotFound            = errors.New("membership not found")
	ErrDuplicateMembership = errors.New("user is already a member of this workspace")
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
		return ErrDuplicateMembership
	default:
		return err
	}
}

// Create inserts a membership. JoinedAt defaults to now.
// The unique (user_id, workspace_id) index turns a racing duplicate into
// ErrDuplicateMembership.
func (s *Store) Create(ctx context.Context, m models.Membership) (models.Membership, error) {
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Membership{}, mapErr(err)
	}
	return m, nil
}

// Get loads membership id scoped to workspaceID.
func (s *Store) Get(ctx context.Context, id, workspaceID primitive.ObjectID) (models.Membership, error) {
	return s.findOne(ctx, bson.M{"_id": id, "workspace_id": workspaceID})
}

// GetByUserWorkspace loads the membership joining userID and workspaceID.
func (s *Store) GetByUserWorkspace(ctx context.Context, userID, workspaceID primitive.ObjectID) (models.Membership, error) {
	return s.findOne(ctx, bson.M{"user_id": userID, "workspace_id": workspaceID})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Membership, error) {
	var m models.Membership
	if err := s.c.FindOne(ctx, filter).Decode(&m); err != nil {
		return models.Membership{}, mapErr(err)
	}
	return m, nil
}

// Exists reports whether userID is a member of workspaceID.
func (s *Store) Exists(ctx context.Context, userID, workspaceID primitive.ObjectID) (bool, error) {
	_, err := s.GetByUserWorkspace(ctx, userID, workspaceID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// UpdateRole points membership id at roleID.
func (s *Store) UpdateRole(ctx context.Context, id, workspaceID, roleID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "workspace_id": workspaceID},
		bson.M{"$set": bson.M{"role_id": roleID, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes membership id from workspaceID.
func (s *Store) Delete(ctx context.Context, id, workspaceID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "workspace_id": workspaceID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByWorkspace returns the number of members in workspaceID.
func (s *Store) CountByWorkspace(ctx context.Context, workspaceID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"workspace_id": workspaceID})
}

// CountByUser returns the number of workspaces userID belongs to.
func (s *Store) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID})
}

// CountWithRole returns how many members of workspaceID hold roleID.
func (s *Store) CountWithRole(ctx context.Context, workspaceID, roleID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"workspace_id": workspaceID, "role_id": roleID})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Expanded read model                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// expandStages joins each membership with its user's public fields and its
// role. Every read that hands a membership to a caller goes through here.
func expandStages() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "user_id",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "roles",
			"localField":   "role_id",
			"foreignField": "_id",
			"as":           "role",
		}}},
		{{Key: "$unwind", Value: "$role"}},
		{{Key: "$project", Value: bson.M{
			"_id":          1,
			"workspace_id": 1,
			"joined_at":    1,
			"created_at":   1,
			"updated_at":   1,
			"user": bson.M{
				"_id":             "$user._id",
				"name":            "$user.name",
				"email":           "$user.email",
				"profile_picture": "$user.profile_picture",
			},
			"role": bson.M{
				"_id":         "$role._id",
				"name":        "$role.name",
				"permissions": "$role.permissions",
			},
		}}},
	}
}

func (s *Store) expanded(ctx context.Context, match bson.M, sort bson.D) ([]models.ExpandedMembership, error) {
	pipe := mongo.Pipeline{{{Key: "$match", Value: match}}}
	if len(sort) > 0 {
		pipe = append(pipe, bson.D{{Key: "$sort", Value: sort}})
	}
	pipe = append(pipe, expandStages()...)

	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.ExpandedMembership{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpandedByID returns membership id in workspaceID with user and role.
func (s *Store) ExpandedByID(ctx context.Context, id, workspaceID primitive.ObjectID) (models.ExpandedMembership, error) {
	rows, err := s.expanded(ctx, bson.M{"_id": id, "workspace_id": workspaceID}, nil)
	if err != nil {
		return models.ExpandedMembership{}, err
	}
	if len(rows) == 0 {
		return models.ExpandedMembership{}, ErrNotFound
	}
	return rows[0], nil
}

// ExpandedByWorkspace returns every member of workspaceID, newest first.
func (s *Store) ExpandedByWorkspace(ctx context.Context, workspaceID primitive.ObjectID) ([]models.ExpandedMembership, error) {
	return s.expanded(ctx,
		bson.M{"workspace_id": workspaceID},
		bson.D{{Key: "joined_at", Value: -1}, {Key: "_id", Value: -1}})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Per-user views                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// UserWorkspace is one of a user's memberships joined with its workspace
// and role.
type UserWorkspace struct {
	MembershipID primitive.ObjectID      `bson:"_id" json:"membershipId"`
	Workspace    models.WorkspaceSummary `bson:"workspace" json:"workspace"`
	OwnerID      primitive.ObjectID      `bson:"owner_id" json:"ownerId"`
	Role         models.MemberRole       `bson:"role" json:"role"`
	JoinedAt     time.Time               `bson:"joined_at" json:"joinedAt"`
	UpdatedAt    time.Time               `bson:"updated_at" json:"-"`
}

// ListForUser returns userID's memberships with workspace and role,
// most recently updated first. limit <= 0 means no limit.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]UserWorkspace, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}}},
	}
	if limit > 0 {
		pipe = append(pipe, bson.D{{Key: "$limit", Value: limit}})
	}
	pipe = append(pipe,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "workspaces",
			"localField":   "workspace_id",
			"foreignField": "_id",
			"as":           "ws",
		}}},
		bson.D{{Key: "$unwind", Value: "$ws"}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "roles",
			"localField":   "role_id",
			"foreignField": "_id",
			"as":           "role",
		}}},
		bson.D{{Key: "$unwind", Value: "$role"}},
		bson.D{{Key: "$project", Value: bson.M{
			"_id":        1,
			"joined_at":  1,
			"updated_at": 1,
			"owner_id":   "$ws.owner_id",
			"workspace": bson.M{
				"_id":         "$ws._id",
				"name":        "$ws.name",
				"description": "$ws.description",
				"created_at":  "$ws.created_at",
			},
			"role": bson.M{
				"_id":         "$role._id",
				"name":        "$role.name",
				"permissions": "$role.permissions",
			},
		}}},
	)

	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []UserWorkspace{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RoleIDInWorkspace returns the role id userID holds in workspaceID.
func (s *Store) RoleIDInWorkspace(ctx context.Context, userID, workspaceID primitive.ObjectID) (primitive.ObjectID, error) {
	var row struct {
		RoleID primitive.ObjectID `bson:"role_id"`
	}
	opts := options.FindOne().SetProjection(bson.M{"role_id": 1})
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "workspace_id": workspaceID}, opts).Decode(&row)
	if err != nil {
		return primitive.NilObjectID, mapErr(err)
	}
	return row.RoleID, nil
}
