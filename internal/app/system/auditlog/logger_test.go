package auditlog_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dalemusser/teamhub/internal/app/store/activity"
	"github.com/dalemusser/teamhub/internal/app/system/auditlog"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"github.com/dalemusser/teamhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memSink struct {
	mu      sync.Mutex
	entries []models.ActivityLog
	err     error
}

func (s *memSink) Create(_ context.Context, e models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(context.Background(), req, auditlog.Event{Action: "test"})
	logger.Login(context.Background(), req, primitive.NewObjectID(), "email")
	logger.Logout(context.Background(), nil, primitive.NewObjectID())
}

func TestLogger_Routing(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		wantDB   int
		wantLogs int
	}{
		{"all", auditlog.ModeAll, 1, 1},
		{"db", auditlog.ModeDB, 1, 0},
		{"log", auditlog.ModeLog, 0, 1},
		{"off", auditlog.ModeOff, 0, 0},
		{"empty defaults to all", "", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memSink{}
			core, logs := observer.New(zap.InfoLevel)
			logger := auditlog.New(sink, zap.New(core), auditlog.Config{Auth: tt.mode, Membership: auditlog.ModeOff})

			req := httptest.NewRequest("POST", "/auth/login", nil)
			req.Header.Set("User-Agent", "test-agent")
			logger.Login(context.Background(), req, primitive.NewObjectID(), "email")
			// Membership is off regardless.
			logger.WorkspaceLeft(context.Background(), req, primitive.NewObjectID(), primitive.NewObjectID())

			if len(sink.entries) != tt.wantDB {
				t.Errorf("db entries = %d, want %d", len(sink.entries), tt.wantDB)
			}
			if logs.Len() != tt.wantLogs {
				t.Errorf("log entries = %d, want %d", logs.Len(), tt.wantLogs)
			}
			if tt.wantDB == 1 {
				e := sink.entries[0]
				if e.Action != models.ActionLogin || e.ResourceType != models.ResourceUser {
					t.Errorf("unexpected entry %+v", e)
				}
				if e.UserAgent != "test-agent" || e.IPAddress == "" {
					t.Errorf("request context not captured: %+v", e)
				}
			}
		})
	}
}

func TestLogger_SinkFailureIsSwallowed(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	core, logs := observer.New(zap.ErrorLevel)
	logger := auditlog.New(sink, zap.New(core), auditlog.Config{Membership: auditlog.ModeDB})

	logger.WorkspaceCreated(context.Background(), nil, primitive.NewObjectID(), primitive.NewObjectID(), "WS")

	if logs.FilterMessage("failed to store activity").Len() != 1 {
		t.Error("expected the failure to be logged")
	}
}

func TestLogger_CancelledContextStillWrites(t *testing.T) {
	sink := &memSink{}
	logger := auditlog.New(sink, zap.NewNop(), auditlog.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger.PasswordChanged(ctx, nil, primitive.NewObjectID())

	if len(sink.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(sink.entries))
	}
}

func TestLogger_MembershipHelpers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := activity.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	ws := primitive.NewObjectID()
	m := models.ExpandedMembership{
		ID:   primitive.NewObjectID(),
		User: models.MemberUser{ID: primitive.NewObjectID(), Email: "m@example.com"},
		Role: models.MemberRole{Name: "ADMIN"},
	}
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: auditlog.ModeDB, Membership: auditlog.ModeDB})
	req := httptest.NewRequest("POST", "/", nil)

	logger.WorkspaceCreated(ctx, req, actor, ws, "WS")
	logger.WorkspaceJoined(ctx, req, actor, ws, "MEMBER")
	logger.InviteCodeReset(ctx, req, actor, ws)
	logger.MemberAdded(ctx, req, actor, ws, m)
	logger.MemberRoleUpdated(ctx, req, actor, ws, m)
	logger.MemberRemoved(ctx, req, actor, ws, m, false)
	logger.WorkspaceLeft(ctx, req, actor, ws)
	logger.ProfileUpdated(ctx, req, actor, []string{"name", "email"})
	logger.AccountDeactivated(ctx, req, actor)

	f := activity.Filter{UserID: actor}
	n, err := store.Count(ctx, f)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 9 {
		t.Errorf("stored %d entries, want 9", n)
	}

	sum, err := store.SummaryByResource(ctx, actor)
	if err != nil {
		t.Fatalf("SummaryByResource failed: %v", err)
	}
	if sum[models.ResourceMember] != 3 || sum[models.ResourceWorkspace] != 4 || sum[models.ResourceUser] != 2 {
		t.Errorf("summary = %v", sum)
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []string{"all", "db", "log", "off"} {
		if !auditlog.ValidMode(m) {
			t.Errorf("%q should be valid", m)
		}
	}
	if auditlog.ValidMode("everything") {
		t.Error("unexpected valid mode")
	}
}
