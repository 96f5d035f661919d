// internal/app/features/members/handler.go
package members

import (
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/policy/memberpolicy"
	"github.com/dalemusser/teamhub/internal/app/services/membership"
	"github.com/dalemusser/teamhub/internal/app/system/auditlog"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"go.uber.org/zap"
)

// Handler is the feature-level handler for workspace membership.
// It holds the membership service, the policy gate, and the audit logger
// provided by Startup.
type Handler struct {
	Members  *membership.Service
	Gate     *memberpolicy.Gate
	AuditLog *auditlog.Logger
	Log      *zap.Logger

	// JoinLimit throttles invite-code joins. Nil disables it.
	JoinLimit func(http.Handler) http.Handler
}

func NewHandler(svc *membership.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Members:  svc,
		Gate:     memberpolicy.New(svc, logger),
		AuditLog: audit,
		Log:      logger,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.Log, err)
}
