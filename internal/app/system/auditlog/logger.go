// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/teamhub/internal/app/system/ratelimit"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Categories route events to a Config setting.
const (
	CategoryAuth       = "auth"
	CategoryMembership = "membership"
)

// Destinations accepted by Config fields.
const (
	ModeAll = "all" // activity store + zap
	ModeDB  = "db"  // activity store only
	ModeLog = "log" // zap only
	ModeOff = "off"
)

// ValidMode reports whether s is an accepted destination.
func ValidMode(s string) bool {
	switch s {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Config holds per-category destinations.
type Config struct {
	// Auth covers register, login, logout, password and account events.
	Auth string
	// Membership covers workspace and member events.
	Membership string
}

// Sink persists activity entries. *activity.Store satisfies it.
type Sink interface {
	Create(ctx context.Context, e models.ActivityLog) error
}

// Logger writes activity events to the activity store and zap. It never
// returns an error: a failed write is logged and dropped.
type Logger struct {
	sink   Sink
	zapLog *zap.Logger
	config Config
}

// New creates a new activity Logger.
func New(sink Sink, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{sink: sink, zapLog: zapLog, config: config}
}

// Event is one activity with its routing category.
type Event struct {
	Category     string
	UserID       primitive.ObjectID
	Action       string
	ResourceType string
	ResourceID   *primitive.ObjectID
	WorkspaceID  *primitive.ObjectID
	Metadata     map[string]string
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case CategoryAuth:
		s = l.config.Auth
	case CategoryMembership:
		s = l.config.Membership
	}
	if s == "" {
		return ModeAll
	}
	return s
}

// Log records e according to its category setting. A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, r *http.Request, e Event) {
	if l == nil {
		return
	}
	mode := l.setting(e.Category)
	if mode == ModeOff {
		return
	}

	entry := models.ActivityLog{
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		WorkspaceID:  e.WorkspaceID,
		Metadata:     e.Metadata,
	}
	if r != nil {
		entry.IPAddress = ratelimit.ClientIP(r)
		entry.UserAgent = r.UserAgent()
	}

	if mode == ModeAll || mode == ModeLog {
		l.logToZap(e.Category, entry)
	}
	if (mode == ModeAll || mode == ModeDB) && l.sink != nil {
		// The triggering operation has already committed; finish the write
		// even if the client went away.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
		defer cancel()
		if err := l.sink.Create(wctx, entry); err != nil {
			l.zapLog.Error("failed to store activity",
				zap.Error(err),
				zap.String("action", entry.Action))
		}
	}
}

func (l *Logger) logToZap(category string, e models.ActivityLog) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", category),
		zap.String("action", e.Action),
		zap.String("resource_type", e.ResourceType),
		zap.String("user_id", e.UserID.Hex()),
		zap.String("ip", e.IPAddress),
	}
	if e.ResourceID != nil {
		fields = append(fields, zap.String("resource_id", e.ResourceID.Hex()))
	}
	if e.WorkspaceID != nil {
		fields = append(fields, zap.String("workspace_id", e.WorkspaceID.Hex()))
	}
	for k, v := range e.Metadata {
		fields = append(fields, zap.String("meta_"+k, v))
	}
	l.zapLog.Info("activity", fields...)
}

func ptr(id primitive.ObjectID) *primitive.ObjectID { return &id }

/*─────────────────────────────────────────────────────────────────────────────*
| Auth events                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, method string) {
	l.Log(ctx, r, Event{
		Category:     CategoryAuth,
		UserID:       userID,
		Action:       models.ActionRegistered,
		ResourceType: models.ResourceUser,
		ResourceID:   ptr(userID),
		Metadata:     map[string]string{"method": method},
	})
}

func (l *Logger) Login(ctx context.Context, r *http.Request, userID primitive.ObjectID, method string) {
	l.Log(ctx, r, Event{
		Category:     CategoryAuth,
		UserID:       userID,
		Action:       models.ActionLogin,
		ResourceType: models.ResourceUser,
		ResourceID:   ptr(userID),
		Metadata:     map[string]string{"method": method},
	})
}

func (l *Logger) Logout(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, r, Event{
		Category:     CategoryAuth,
		UserID:       userID,
		Action:       models.ActionLogout,
		ResourceType: models.ResourceUser,
		ResourceID:   ptr(userID),
	})
}

func (l *Logger) ProfileUpdated(ctx context.Context, r *http.Request, userID primitive.ObjectID, fields []string) {
	l.Log(ctx, r, Event{
		Category:     CategoryAuth,
		UserID:       userID,
		Action:       models.ActionProfileUpdated,
		ResourceType: models.ResourceUser,
		ResourceID:   ptr(userID),
		Metadata:     map[string]string{"updatedFields": strings.Join(fields, ",")},
	})
}

func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, r, Event{
		Category:     CategoryAuth,
		UserID:       userID,
		Action:       models.ActionPasswordChanged,
		ResourceType: models.ResourceUser,
		ResourceID:   ptr(userID),
	})
}

func (l *Logger) AccountDeactivated(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, r, Event{
		Category:     CategoryAuth,
		UserID:       userID,
		Action:       models.ActionAccountDeactivated,
		ResourceType: models.ResourceUser,
		ResourceID:   ptr(userID),
		Metadata:     map[string]string{"reason": "account_deactivation"},
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Membership events                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

func (l *Logger) WorkspaceCreated(ctx context.Context, r *http.Request, userID, workspaceID primitive.ObjectID, name string) {
	l.Log(ctx, r, Event{
		Category:     CategoryMembership,
		UserID:       userID,
		Action:       models.ActionWorkspaceCreated,
		ResourceType: models.ResourceWorkspace,
		ResourceID:   ptr(workspaceID),
		WorkspaceID:  ptr(workspaceID),
		Metadata:     map[string]string{"name": name},
	})
}

func (l *Logger) WorkspaceJoined(ctx context.Context, r *http.Request, userID, workspaceID primitive.ObjectID, role string) {
	l.Log(ctx, r, Event{
		Category:     CategoryMembership,
		UserID:       userID,
		Action:       models.ActionWorkspaceJoined,
		ResourceType: models.ResourceWorkspace,
		ResourceID:   ptr(workspaceID),
		WorkspaceID:  ptr(workspaceID),
		Metadata:     map[string]string{"role": role},
	})
}

func (l *Logger) WorkspaceLeft(ctx context.Context, r *http.Request, userID, workspaceID primitive.ObjectID) {
	l.Log(ctx, r, Event{
		Category:     CategoryMembership,
		UserID:       userID,
		Action:       models.ActionWorkspaceLeft,
		ResourceType: models.ResourceWorkspace,
		ResourceID:   ptr(workspaceID),
		WorkspaceID:  ptr(workspaceID),
	})
}

func (l *Logger) InviteCodeReset(ctx context.Context, r *http.Request, actorID, workspaceID primitive.ObjectID) {
	l.Log(ctx, r, Event{
		Category:     CategoryMembership,
		UserID:       actorID,
		Action:       models.ActionInviteCodeReset,
		ResourceType: models.ResourceWorkspace,
		ResourceID:   ptr(workspaceID),
		WorkspaceID:  ptr(workspaceID),
	})
}

func (l *Logger) MemberAdded(ctx context.Context, r *http.Request, actorID, workspaceID primitive.ObjectID, m models.ExpandedMembership) {
	l.Log(ctx, r, Event{
		Category:     CategoryMembership,
		UserID:       actorID,
		Action:       models.ActionMemberAdded,
		ResourceType: models.ResourceMember,
		ResourceID:   ptr(m.ID),
		WorkspaceID:  ptr(workspaceID),
		Metadata: map[string]string{
			"targetUserId": m.User.ID.Hex(),
			"email":        m.User.Email,
			"role":         m.Role.Name,
		},
	})
}

func (l *Logger) MemberRemoved(ctx context.Context, r *http.Request, actorID, workspaceID primitive.ObjectID, m models.ExpandedMembership, self bool) {
	meta := map[string]string{"targetUserId": m.User.ID.Hex(), "email": m.User.Email}
	if self {
		meta["self"] = "true"
	}
	l.Log(ctx, r, Event{
		Category:     CategoryMembership,
		UserID:       actorID,
		Action:       models.ActionMemberRemoved,
		ResourceType: models.ResourceMember,
		ResourceID:   ptr(m.ID),
		WorkspaceID:  ptr(workspaceID),
		Metadata:     meta,
	})
}

func (l *Logger) MemberRoleUpdated(ctx context.Context, r *http.Request, actorID, workspaceID primitive.ObjectID, m models.ExpandedMembership) {
	l.Log(ctx, r, Event{
		Category:     CategoryMembership,
		UserID:       actorID,
		Action:       models.ActionMemberRoleUpdated,
		ResourceType: models.ResourceMember,
		ResourceID:   ptr(m.ID),
		WorkspaceID:  ptr(workspaceID),
		Metadata: map[string]string{
			"targetUserId": m.User.ID.Hex(),
			"role":         m.Role.Name,
		},
	})
}
