// internal/app/features/login/handler.go
package login

import (
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/services/provisioning"
	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	"github.com/dalemusser/teamhub/internal/app/system/auditlog"
	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/metrics"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves local registration and password login.
type Handler struct {
	Provisioning *provisioning.Service
	Users        *userstore.Store
	SessionMgr   *auth.SessionManager
	AuditLog     *auditlog.Logger
	Metrics      metrics.Recorder
	Log          *zap.Logger

	// Limit throttles register and login attempts. Nil disables it.
	Limit func(http.Handler) http.Handler
}

func NewHandler(db *mongo.Database, prov *provisioning.Service, sessionMgr *auth.SessionManager, audit *auditlog.Logger, rec metrics.Recorder, logger *zap.Logger) *Handler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Handler{
		Provisioning: prov,
		Users:        userstore.New(db),
		SessionMgr:   sessionMgr,
		AuditLog:     audit,
		Metrics:      rec,
		Log:          logger,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.Log, err)
}
