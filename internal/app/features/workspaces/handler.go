// internal/app/features/workspaces/handler.go
package workspaces

import (
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/policy/memberpolicy"
	"github.com/dalemusser/teamhub/internal/app/services/provisioning"
	activitystore "github.com/dalemusser/teamhub/internal/app/store/activity"
	membershipstore "github.com/dalemusser/teamhub/internal/app/store/memberships"
	workspacestore "github.com/dalemusser/teamhub/internal/app/store/workspaces"
	"github.com/dalemusser/teamhub/internal/app/system/auditlog"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// recentActivityLimit caps the activity shown on the workspace detail.
const recentActivityLimit = 10

// Handler provides HTTP handlers for the caller's workspaces.
type Handler struct {
	Provisioning *provisioning.Service
	Workspaces   *workspacestore.Store
	Members      *membershipstore.Store
	Activity     *activitystore.Store
	Gate         *memberpolicy.Gate
	Log          *zap.Logger
	AuditLog     *auditlog.Logger
}

// NewHandler creates a new workspaces Handler.
func NewHandler(db *mongo.Database, prov *provisioning.Service, gate *memberpolicy.Gate, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Provisioning: prov,
		Workspaces:   workspacestore.New(db),
		Members:      membershipstore.New(db),
		Activity:     activitystore.New(db),
		Gate:         gate,
		Log:          logger,
		AuditLog:     audit,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.Log, err)
}
