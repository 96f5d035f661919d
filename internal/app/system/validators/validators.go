// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	activitystore "github.com/dalemusser/teamhub/internal/app/store/activity"
	accountstore "github.com/dalemusser/teamhub/internal/app/store/accounts"
	membershipstore "github.com/dalemusser/teamhub/internal/app/store/memberships"
	"github.com/dalemusser/teamhub/internal/app/store/oauthstate"
	rolestore "github.com/dalemusser/teamhub/internal/app/store/roles"
	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	workspacestore "github.com/dalemusser/teamhub/internal/app/store/workspaces"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Identity
	ensure(userstore.Collection, usersSchema())
	ensure(accountstore.Collection, accountsSchema())

	// Tenancy and authorization
	ensure(workspacestore.Collection, workspacesSchema())
	ensure(rolestore.Collection, rolesSchema())
	ensure(membershipstore.Collection, membersSchema())

	ensure(activitystore.Collection, activityLogsSchema())

	// Short-lived; no validator needed.
	ensure(oauthstate.Collection, nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

// nonBlank matches a string with at least one non-space character.
var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func enumOf(values []string) bson.A {
	out := bson.A{}
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "email", "is_active"},
			"properties": bson.M{
				"name":              nonBlank,
				"name_ci":           bson.M{"bsonType": "string"},
				"email":             nonBlank,
				"password_hash":     bson.M{"bsonType": "string"},
				"profile_picture":   bson.M{"bsonType": "string"},
				"description":       bson.M{"bsonType": "string", "maxLength": 500},
				"current_workspace": bson.M{"bsonType": "objectId"},
				"is_active":         bson.M{"bsonType": "bool"},
				"last_login":        bson.M{"bsonType": "date"},
			},
		},
	}
}

func accountsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "provider", "provider_id"},
			"properties": bson.M{
				"user_id":      bson.M{"bsonType": "objectId"},
				"provider":     bson.M{"enum": bson.A{accountstore.ProviderEmail, accountstore.ProviderGoogle}},
				"provider_id":  nonBlank,
				"email":        bson.M{"bsonType": "string"},
				"token_expiry": bson.M{"bsonType": "date"},
			},
		},
	}
}

func workspacesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "owner_id", "invite_code"},
			"properties": bson.M{
				"name":        nonBlank,
				"name_ci":     bson.M{"bsonType": "string"},
				"description": bson.M{"bsonType": "string", "maxLength": 500},
				"owner_id":    bson.M{"bsonType": "objectId"},
				"invite_code": nonBlank,
			},
		},
	}
}

func rolesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "permissions"},
			"properties": bson.M{
				"name": bson.M{"enum": enumOf(authz.RoleNames)},
				"permissions": bson.M{
					"bsonType": "array",
					"items":    bson.M{"enum": enumOf(authz.AllPermissions)},
				},
			},
		},
	}
}

func membersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "workspace_id", "role_id"},
			"properties": bson.M{
				"user_id":      bson.M{"bsonType": "objectId"},
				"workspace_id": bson.M{"bsonType": "objectId"},
				"role_id":      bson.M{"bsonType": "objectId"},
				"joined_at":    bson.M{"bsonType": "date"},
			},
		},
	}
}

func activityLogsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "action", "resource_type", "created_at"},
			"properties": bson.M{
				"user_id":       bson.M{"bsonType": "objectId"},
				"action":        nonBlank,
				"resource_type": bson.M{"enum": enumOf(models.ResourceTypes)},
				"resource_id":   bson.M{"bsonType": "objectId"},
				"workspace_id":  bson.M{"bsonType": "objectId"},
				"metadata":      bson.M{"bsonType": "object"},
				"created_at":    bson.M{"bsonType": "date"},
			},
		},
	}
}
