// internal/app/features/profile/handler.go
package profile

import (
	"net/http"

	activitystore "github.com/dalemusser/teamhub/internal/app/store/activity"
	membershipstore "github.com/dalemusser/teamhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	workspacestore "github.com/dalemusser/teamhub/internal/app/store/workspaces"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/auditlog"
	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// recentWorkspacesLimit caps the recentWorkspaces list on GET /profile.
const recentWorkspacesLimit = 5

var errUserNotFound = apperr.NotFound("User not found")

// Handler owns all /user handlers.
type Handler struct {
	Users       *userstore.Store
	Memberships *membershipstore.Store
	Workspaces  *workspacestore.Store
	Activity    *activitystore.Store
	SessionMgr  *auth.SessionManager
	AuditLog    *auditlog.Logger
	Log         *zap.Logger
}

// NewHandler constructs a Handler bound to the given Mongo database and logger.
func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:       userstore.New(db),
		Memberships: membershipstore.New(db),
		Workspaces:  workspacestore.New(db),
		Activity:    activitystore.New(db),
		SessionMgr:  sessionMgr,
		AuditLog:    audit,
		Log:         logger,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.Log, err)
}
