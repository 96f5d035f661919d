package rolestore_test

import (
	"errors"
	"slices"
	"testing"

	rolestore "github.com/dalemusser/teamhub/internal/app/store/roles"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSeed_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := rolestore.Seed(ctx, db); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	store := rolestore.New(db)
	first, err := store.GetByName(ctx, authz.RoleOwner)
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}

	if err := rolestore.Seed(ctx, db); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
	second, err := store.GetByName(ctx, authz.RoleOwner)
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("seed changed OWNER id: %s -> %s", first.ID.Hex(), second.ID.Hex())
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != len(authz.RoleNames) {
		t.Errorf("expected %d roles, got %d", len(authz.RoleNames), len(list))
	}
}

func TestSeed_RepairsPermissions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := rolestore.Seed(ctx, db); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	_, err := db.Collection(rolestore.Collection).UpdateOne(ctx,
		bson.M{"name": authz.RoleMember},
		bson.M{"$set": bson.M{"permissions": []string{"DELETE_WORKSPACE"}}})
	if err != nil {
		t.Fatalf("UpdateOne failed: %v", err)
	}

	if err := rolestore.Seed(ctx, db); err != nil {
		t.Fatalf("re-Seed failed: %v", err)
	}
	r, err := rolestore.New(db).GetByName(ctx, authz.RoleMember)
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	got := slices.Clone(r.Permissions)
	want := slices.Clone(authz.PermissionsFor(authz.RoleMember))
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("MEMBER permissions = %v, want %v", got, want)
	}
}

func TestStore_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := rolestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByName(ctx, "NOPE"); !errors.Is(err, rolestore.ErrNotFound) {
		t.Errorf("GetByName(NOPE) err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, rolestore.ErrNotFound) {
		t.Errorf("GetByID(random) err = %v, want ErrNotFound", err)
	}
}

func TestCatalog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cat := rolestore.NewCatalog(rolestore.New(db))

	if err := cat.Verify(ctx); !errors.Is(err, rolestore.ErrCatalogMissing) {
		t.Fatalf("unseeded Verify err = %v, want ErrCatalogMissing", err)
	}

	if err := rolestore.Seed(ctx, db); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if err := cat.Verify(ctx); err != nil {
		t.Fatalf("Verify after seed failed: %v", err)
	}

	owner, err := cat.ByName(ctx, authz.RoleOwner)
	if err != nil {
		t.Fatalf("ByName failed: %v", err)
	}
	byID, err := cat.ByID(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if byID.Name != authz.RoleOwner {
		t.Errorf("ByID name = %q, want %q", byID.Name, authz.RoleOwner)
	}

	// Cached entries survive the backing document going away until purged.
	if _, err := db.Collection(rolestore.Collection).DeleteOne(ctx, bson.M{"_id": owner.ID}); err != nil {
		t.Fatalf("DeleteOne failed: %v", err)
	}
	if _, err := cat.ByName(ctx, authz.RoleOwner); err != nil {
		t.Errorf("cached ByName failed: %v", err)
	}

	cat.Purge()
	if _, err := cat.Required(ctx, authz.RoleOwner); !errors.Is(err, rolestore.ErrCatalogMissing) {
		t.Errorf("Required after purge err = %v, want ErrCatalogMissing", err)
	}
	if _, err := cat.ByID(ctx, primitive.NewObjectID()); !errors.Is(err, rolestore.ErrNotFound) {
		t.Errorf("ByID(random) err = %v, want ErrNotFound", err)
	}
}
