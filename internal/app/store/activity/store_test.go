package activity_test

import (
	"testing"
	"time"

	"github.com/dalemusser/teamhub/internal/app/store/activity"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"github.com/dalemusser/teamhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_ListCountSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := activity.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := fx.CreateUser(ctx, "User", "user@example.com")
	ws := fx.CreateWorkspace(ctx, "Team Space", user.ID)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	entries := []models.ActivityLog{
		{UserID: user.ID, Action: models.ActionLogin, ResourceType: models.ResourceUser, CreatedAt: base},
		{UserID: user.ID, Action: models.ActionWorkspaceCreated, ResourceType: models.ResourceWorkspace, WorkspaceID: &ws.ID, CreatedAt: base.Add(time.Minute)},
		{UserID: user.ID, Action: models.ActionMemberAdded, ResourceType: models.ResourceMember, WorkspaceID: &ws.ID, CreatedAt: base.Add(2 * time.Minute)},
		{UserID: user.ID, Action: models.ActionLogout, ResourceType: models.ResourceUser, CreatedAt: base.Add(3 * time.Minute)},
		{UserID: primitive.NewObjectID(), Action: models.ActionLogin, ResourceType: models.ResourceUser, CreatedAt: base},
	}
	for _, e := range entries {
		if err := store.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	all := activity.Filter{UserID: user.ID}
	n, err := store.Count(ctx, all)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}

	page, err := store.List(ctx, all, 0, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 entries on first page, got %d", len(page))
	}
	if page[0].Action != models.ActionLogout || page[1].Action != models.ActionMemberAdded {
		t.Errorf("first page actions = %q, %q; want newest first", page[0].Action, page[1].Action)
	}
	if page[1].WorkspaceName != "Team Space" {
		t.Errorf("WorkspaceName = %q, want %q", page[1].WorkspaceName, "Team Space")
	}

	page2, err := store.List(ctx, all, 2, 2)
	if err != nil {
		t.Fatalf("List page 2 failed: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("expected 2 entries on second page, got %d", len(page2))
	}
	if page2[1].Action != models.ActionLogin {
		t.Errorf("oldest entry = %q, want %q", page2[1].Action, models.ActionLogin)
	}

	tests := []struct {
		name string
		f    activity.Filter
		want int64
	}{
		{"by type", activity.Filter{UserID: user.ID, ResourceType: models.ResourceUser}, 2},
		{"from start", activity.Filter{UserID: user.ID, Start: ptr(base.Add(90 * time.Second))}, 2},
		{"until end", activity.Filter{UserID: user.ID, End: ptr(base.Add(time.Minute))}, 2},
		{"window and type", activity.Filter{UserID: user.ID, ResourceType: models.ResourceWorkspace, Start: ptr(base), End: ptr(base.Add(time.Hour))}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Count(ctx, tt.f)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Count = %d, want %d", got, tt.want)
			}
		})
	}

	sum, err := store.SummaryByResource(ctx, user.ID)
	if err != nil {
		t.Fatalf("SummaryByResource failed: %v", err)
	}
	want := map[string]int64{"user": 2, "workspace": 1, "member": 1}
	if len(sum) != len(want) {
		t.Errorf("summary = %v, want %v", sum, want)
	}
	for k, v := range want {
		if sum[k] != v {
			t.Errorf("summary[%q] = %d, want %d", k, sum[k], v)
		}
	}

	recent, err := store.RecentForWorkspace(ctx, ws.ID, 10)
	if err != nil {
		t.Fatalf("RecentForWorkspace failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 workspace entries, got %d", len(recent))
	}
}

func ptr(t time.Time) *time.Time { return &t }
