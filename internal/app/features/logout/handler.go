// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/system/auditlog"
	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// HandleLogout handles POST /logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		if uid, err := primitive.ObjectIDFromHex(u.ID); err == nil {
			h.AuditLog.Logout(r.Context(), r, uid)
		}
	}

	// SignOut expires the cookie even when the old one failed to decode.
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
		respond.Message(w, http.StatusInternalServerError, "Logout failed")
		return
	}
	respond.Message(w, http.StatusOK, "Logout successful")
}
