package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	rolestore "github.com/dalemusser/teamhub/internal/app/store/roles"
	"github.com/dalemusser/teamhub/internal/app/system/authutil"
	"github.com/dalemusser/teamhub/internal/app/system/normalize"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TestPassword satisfies the password rules and is what CreateUserWithPassword
// uses when no password is given.
const TestPassword = "Secret123"

// WithChiURLParams adds chi URL parameters to the request context.
// Use this in handler tests that read chi.URLParam values.
func WithChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db    *mongo.Database
	t     *testing.T
	roles map[string]models.Role
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// SeedRoles seeds the built-in roles and returns them keyed by name.
func (f *Fixtures) SeedRoles(ctx context.Context) map[string]models.Role {
	f.t.Helper()

	if err := rolestore.Seed(ctx, f.db); err != nil {
		f.t.Fatalf("failed to seed roles: %v", err)
	}
	list, err := rolestore.New(f.db).List(ctx)
	if err != nil {
		f.t.Fatalf("failed to list roles: %v", err)
	}
	f.roles = make(map[string]models.Role, len(list))
	for _, r := range list {
		f.roles[r.Name] = r
	}
	return f.roles
}

// Role returns a seeded role, seeding on first use.
func (f *Fixtures) Role(ctx context.Context, name string) models.Role {
	f.t.Helper()
	if f.roles == nil {
		f.SeedRoles(ctx)
	}
	r, ok := f.roles[name]
	if !ok {
		f.t.Fatalf("role %q not seeded", name)
	}
	return r
}

// CreateUser creates an active OAuth-style user without a password.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.insertUser(ctx, name, email, "", true)
}

// CreateUserWithPassword creates an active user with a bcrypt hash of
// password (TestPassword when empty).
func (f *Fixtures) CreateUserWithPassword(ctx context.Context, name, email, password string) models.User {
	f.t.Helper()
	if password == "" {
		password = TestPassword
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		f.t.Fatalf("failed to hash password: %v", err)
	}
	return f.insertUser(ctx, name, email, hash, true)
}

// CreateInactiveUser creates a deactivated user.
func (f *Fixtures) CreateInactiveUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.insertUser(ctx, name, email, "", false)
}

func (f *Fixtures) insertUser(ctx context.Context, name, email, hash string, active bool) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Name:         normalize.Name(name),
		NameCI:       normalize.NameCI(name),
		Email:        normalize.Email(email),
		PasswordHash: hash,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create user: %v", err)
	}
	return u
}

// CreateWorkspace creates a workspace owned by ownerID together with the
// owner's OWNER membership, mirroring what provisioning produces.
func (f *Fixtures) CreateWorkspace(ctx context.Context, name string, ownerID primitive.ObjectID) models.Workspace {
	f.t.Helper()

	now := time.Now().UTC()
	ws := models.Workspace{
		ID:          primitive.NewObjectID(),
		Name:        normalize.Name(name),
		NameCI:      normalize.NameCI(name),
		Description: "Test workspace",
		OwnerID:     ownerID,
		InviteCode:  primitive.NewObjectID().Hex()[16:],
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("workspaces").InsertOne(ctx, ws); err != nil {
		f.t.Fatalf("failed to create workspace: %v", err)
	}
	f.CreateMembership(ctx, ownerID, ws.ID, "OWNER")
	return ws
}

// CreateMembership adds userID to workspaceID with the named role.
func (f *Fixtures) CreateMembership(ctx context.Context, userID, workspaceID primitive.ObjectID, roleName string) models.Membership {
	f.t.Helper()

	role := f.Role(ctx, roleName)
	now := time.Now().UTC()
	m := models.Membership{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		RoleID:      role.ID,
		JoinedAt:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create membership: %v", err)
	}
	return m
}

// Count returns the number of documents in collection matching filter.
func (f *Fixtures) Count(ctx context.Context, collection string, filter bson.M) int64 {
	f.t.Helper()
	if filter == nil {
		filter = bson.M{}
	}
	n, err := f.db.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		f.t.Fatalf("failed to count %s: %v", collection, err)
	}
	return n
}
