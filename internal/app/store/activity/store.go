// internal/app/store/activity/store.go
package activity

import (
	"context"
	"time"

	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the activity log collection name. A TTL index on
// created_at expires entries; see system/indexes.
const Collection = "activity_logs"

// Entry is an activity log row with its workspace name resolved.
type Entry struct {
	models.ActivityLog `bson:",inline"`
	WorkspaceName      string `bson:"workspace_name,omitempty" json:"workspaceName,omitempty"`
}

// Filter narrows a user's activity listing. Zero fields match everything.
type Filter struct {
	UserID       primitive.ObjectID
	ResourceType string
	Start        *time.Time
	End          *time.Time
}

func (f Filter) bson() bson.M {
	q := bson.M{"user_id": f.UserID}
	if f.ResourceType != "" {
		q["resource_type"] = f.ResourceType
	}
	if f.Start != nil || f.End != nil {
		rng := bson.M{}
		if f.Start != nil {
			rng["$gte"] = f.Start.UTC()
		}
		if f.End != nil {
			rng["$lte"] = f.End.UTC()
		}
		q["created_at"] = rng
	}
	return q
}

// Store manages activity log entries.
type Store struct {
	c *mongo.Collection
}

// New creates a new activity Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Create appends an entry.
func (s *Store) Create(ctx context.Context, e models.ActivityLog) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// List returns one page of entries matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter, skip, limit int64) ([]Entry, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: f.bson()}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: skip}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "workspaces",
			"localField":   "workspace_id",
			"foreignField": "_id",
			"as":           "ws",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"workspace_name": bson.M{"$arrayElemAt": bson.A{"$ws.name", 0}},
		}}},
		{{Key: "$project", Value: bson.M{"ws": 0}}},
	}

	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Entry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of entries matching f.
func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	return s.c.CountDocuments(ctx, f.bson())
}

// SummaryByResource counts all of userID's entries per resource type.
func (s *Store) SummaryByResource(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": "$resource_type", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]int64{}
	for cur.Next(ctx) {
		var row struct {
			Type  string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Type] = row.Count
	}
	return out, cur.Err()
}

// RecentForWorkspace returns the latest entries recorded against workspaceID.
func (s *Store) RecentForWorkspace(ctx context.Context, workspaceID primitive.ObjectID, limit int64) ([]models.ActivityLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"workspace_id": workspaceID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.ActivityLog{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
