// internal/app/features/members/join.go
package members

import (
	"context"
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/services/membership"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleJoin handles POST /workspace/{inviteCode}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Members.JoinByInviteCode(ctx, chi.URLParam(r, "inviteCode"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.AuditLog.WorkspaceJoined(ctx, r, userID, res.WorkspaceID, res.Role)
	respond.JSON(w, http.StatusOK, joinResponse{
		Message:     "Joined workspace successfully",
		WorkspaceID: res.WorkspaceID,
		Role:        res.Role,
	})
}

// HandleLeave handles POST /workspace/{workspaceId}/leave.
// Any member except the owner may leave; no permission is required.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	wsID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "workspaceId"))
	if err != nil {
		h.fail(w, r, membership.ErrNotMember)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Members.Leave(ctx, userID, wsID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.AuditLog.WorkspaceLeft(ctx, r, userID, wsID)
	respond.JSON(w, http.StatusOK, memberResponse{
		Message: "You have left the workspace successfully",
		Member:  m,
	})
}
