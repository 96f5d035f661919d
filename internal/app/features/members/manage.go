// internal/app/features/members/manage.go
package members

import (
	"context"
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/policy/memberpolicy"
	"github.com/dalemusser/teamhub/internal/app/system/inputval"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleAdd handles POST /workspace/{workspaceId}/add.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	acc, _ := memberpolicy.FromRequest(r)

	var in addMemberInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := inputval.Validate(in).Err(); err != nil {
		h.fail(w, r, err)
		return
	}

	var roleID *primitive.ObjectID
	if in.RoleID != nil && *in.RoleID != "" {
		id, _ := primitive.ObjectIDFromHex(*in.RoleID)
		roleID = &id
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Members.AddByEmail(ctx, acc.WorkspaceID, in.Email, roleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.AuditLog.MemberAdded(ctx, r, acc.UserID, acc.WorkspaceID, m)
	respond.JSON(w, http.StatusCreated, memberResponse{
		Message: "Member added successfully",
		Member:  m,
	})
}

// HandleUpdateRole handles PUT /{memberId}/workspace/{workspaceId}/role.
func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	acc, _ := memberpolicy.FromRequest(r)
	memberID, err := memberIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var in updateRoleInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := inputval.Validate(in).Err(); err != nil {
		h.fail(w, r, err)
		return
	}
	roleID, _ := primitive.ObjectIDFromHex(in.RoleID)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Members.UpdateRole(ctx, memberID, acc.WorkspaceID, roleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.AuditLog.MemberRoleUpdated(ctx, r, acc.UserID, acc.WorkspaceID, m)
	respond.JSON(w, http.StatusOK, memberResponse{
		Message: "Member role updated successfully",
		Member:  m,
	})
}

// HandleRemove handles DELETE /{memberId}/workspace/{workspaceId}.
// Removing yourself still needs REMOVE_MEMBER; plain members use leave.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	acc, _ := memberpolicy.FromRequest(r)
	memberID, err := memberIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Members.Remove(ctx, memberID, acc.WorkspaceID, acc.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.AuditLog.MemberRemoved(ctx, r, acc.UserID, acc.WorkspaceID, res.Member, res.IsSelfRemoval)
	msg := "Member removed successfully"
	if res.IsSelfRemoval {
		msg = "You have left the workspace successfully"
	}
	respond.JSON(w, http.StatusOK, memberResponse{Message: msg, Member: res.Member})
}
