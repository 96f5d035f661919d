package accountstore_test

import (
	"errors"
	"testing"
	"time"

	accountstore "github.com/dalemusser/teamhub/internal/app/store/accounts"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"github.com/dalemusser/teamhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	created, err := store.Create(ctx, models.Account{
		UserID:     userID,
		Provider:   accountstore.ProviderEmail,
		ProviderID: "a@x.com",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID.IsZero() {
		t.Error("expected ID to be auto-generated")
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := store.FindByProvider(ctx, accountstore.ProviderEmail, "a@x.com")
	if err != nil {
		t.Fatalf("FindByProvider failed: %v", err)
	}
	if got.UserID != userID {
		t.Errorf("UserID = %s, want %s", got.UserID.Hex(), userID.Hex())
	}

	got, err = store.FindByUser(ctx, userID, accountstore.ProviderEmail)
	if err != nil {
		t.Fatalf("FindByUser failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("FindByUser returned %s, want %s", got.ID.Hex(), created.ID.Hex())
	}

	if _, err := store.FindByProvider(ctx, accountstore.ProviderGoogle, "a@x.com"); !errors.Is(err, accountstore.ErrNotFound) {
		t.Errorf("FindByProvider(google) err = %v, want ErrNotFound", err)
	}
}

func TestStore_Create_Duplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if _, err := store.Create(ctx, models.Account{UserID: userID, Provider: "google", ProviderID: "g-1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := []struct {
		name string
		acct models.Account
	}{
		{"same user and provider", models.Account{UserID: userID, Provider: "google", ProviderID: "g-2"}},
		{"same provider id", models.Account{UserID: primitive.NewObjectID(), Provider: "google", ProviderID: "g-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tt.acct); !errors.Is(err, accountstore.ErrDuplicate) {
				t.Errorf("err = %v, want ErrDuplicate", err)
			}
		})
	}

	n, err := store.CountForUser(ctx, userID)
	if err != nil {
		t.Fatalf("CountForUser failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountForUser = %d, want 1", n)
	}
}

func TestStore_UpdateTokens_KeepsRefreshToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Account{
		UserID:       primitive.NewObjectID(),
		Provider:     "google",
		ProviderID:   "g-1",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	if err := store.UpdateTokens(ctx, created.ID, models.Tokens{AccessToken: "new-access", Expiry: &exp}); err != nil {
		t.Fatalf("UpdateTokens failed: %v", err)
	}

	got, err := store.FindByProvider(ctx, "google", "g-1")
	if err != nil {
		t.Fatalf("FindByProvider failed: %v", err)
	}
	if got.AccessToken != "new-access" {
		t.Errorf("AccessToken = %q, want new-access", got.AccessToken)
	}
	if got.RefreshToken != "old-refresh" {
		t.Errorf("RefreshToken = %q, want it kept as old-refresh", got.RefreshToken)
	}
	if got.TokenExpiry == nil {
		t.Fatal("expected TokenExpiry to be set")
	}
	if !exp.Equal(got.TokenExpiry.UTC()) {
		t.Errorf("TokenExpiry = %v, want %v", got.TokenExpiry.UTC(), exp)
	}

	if err := store.UpdateTokens(ctx, created.ID, models.Tokens{AccessToken: "a3", RefreshToken: "r3"}); err != nil {
		t.Fatalf("UpdateTokens failed: %v", err)
	}
	got, err = store.FindByProvider(ctx, "google", "g-1")
	if err != nil {
		t.Fatalf("FindByProvider failed: %v", err)
	}
	if got.RefreshToken != "r3" {
		t.Errorf("RefreshToken = %q, want r3", got.RefreshToken)
	}

	if err := store.UpdateTokens(ctx, primitive.NewObjectID(), models.Tokens{AccessToken: "x"}); !errors.Is(err, accountstore.ErrNotFound) {
		t.Errorf("UpdateTokens(random) err = %v, want ErrNotFound", err)
	}
}
