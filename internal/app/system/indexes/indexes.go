// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ActivityTTL is how long activity log entries are kept.
const ActivityTTL = 90 * 24 * time.Hour

/*
EnsureAll is called from EnsureSchema. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup fails fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	sets := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"accounts", ensureAccounts},
		{"workspaces", ensureWorkspaces},
		{"roles", ensureRoles},
		{"members", ensureMembers},
		{"activity_logs", ensureActivityLogs},
		{"oauth_states", ensureOAuthStates},
	}

	var problems []string
	for _, s := range sets {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Reconciler                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

type existingIndex struct {
	Name               string `bson:"name"`
	Key                bson.D `bson:"key"`
	Unique             *bool  `bson:"unique,omitempty"`
	ExpireAfterSeconds *int32 `bson:"expireAfterSeconds,omitempty"`
}

type desiredIndex struct {
	model  mongo.IndexModel
	name   string
	sig    string
	unique bool
	ttl    *int32
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func describe(m mongo.IndexModel) desiredIndex {
	d := desiredIndex{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		if m.Options.Unique != nil {
			d.unique = *m.Options.Unique
		}
		d.ttl = m.Options.ExpireAfterSeconds
	}
	return d
}

// matches reports whether ex has the same options as d. Name differences
// are handled separately.
func (d desiredIndex) matches(ex existingIndex) bool {
	exUnique := ex.Unique != nil && *ex.Unique
	if exUnique != d.unique {
		return false
	}
	switch {
	case d.ttl == nil && ex.ExpireAfterSeconds == nil:
		return true
	case d.ttl == nil || ex.ExpireAfterSeconds == nil:
		return false
	default:
		return *d.ttl == *ex.ExpireAfterSeconds
	}
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

// ensureIndexSet creates each desired index, reusing one with the same key
// pattern and options, and dropping and recreating one whose name or
// options differ.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A collection that does not exist yet has no indexes to reconcile.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		d := describe(m)
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.unique))

		if ex, ok := existing[d.sig]; ok {
			if d.matches(ex) && (d.name == "" || ex.Name == d.name) {
				log.Debug("reusing existing index", zap.Duration("took", time.Since(start)))
				continue
			}
			log.Info("replacing index", zap.String("existing", ex.Name))
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), d.name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && d.unique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), d.name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err))
			}
			log.Warn("index ensure failed", zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Collection-specific index sets                                               |
*─────────────────────────────────────────────────────────────────────────────*/

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
	})
}

func ensureAccounts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("accounts"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_accounts_user_provider"),
		},
		{
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_accounts_provider_providerid"),
		},
	})
}

func ensureWorkspaces(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("workspaces"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "invite_code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_workspaces_invite_code"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetName("idx_workspaces_owner"),
		},
	})
}

func ensureRoles(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("roles"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_roles_name"),
		},
	})
}

func ensureMembers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("members"), []mongo.IndexModel{
		// One membership per (user, workspace). Backstop for concurrent joins.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "workspace_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_members_user_workspace"),
		},
		// Member lists, newest first.
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "joined_at", Value: -1}},
			Options: options.Index().SetName("idx_members_workspace_joined"),
		},
		// Recent workspaces on the profile page.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_members_user_updated"),
		},
		{
			Keys:    bson.D{{Key: "role_id", Value: 1}},
			Options: options.Index().SetName("idx_members_role"),
		},
	})
}

func ensureActivityLogs(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("activity_logs"), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(int32(ActivityTTL / time.Second)).
				SetName("ttl_activity_created_at"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_activity_user_created"),
		},
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_activity_workspace_created"),
		},
	})
}

func ensureOAuthStates(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("oauth_states"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_oauth_states_state"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_oauth_states_expires_at"),
		},
	})
}
