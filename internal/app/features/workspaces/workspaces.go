// internal/app/features/workspaces/workspaces.go
package workspaces

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/policy/memberpolicy"
	"github.com/dalemusser/teamhub/internal/app/services/membership"
	membershipstore "github.com/dalemusser/teamhub/internal/app/store/memberships"
	workspacestore "github.com/dalemusser/teamhub/internal/app/store/workspaces"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/app/system/inputval"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.uber.org/zap"
)

type createInput struct {
	Name        string `json:"name" validate:"required,min=1,max=100" label:"Workspace name"`
	Description string `json:"description" validate:"max=500" label:"Description"`
}

type workspaceResponse struct {
	Message   string           `json:"message"`
	Workspace models.Workspace `json:"workspace"`
}

type detailResponse struct {
	Message        string               `json:"message"`
	Workspace      models.Workspace     `json:"workspace"`
	Role           string               `json:"role"`
	RecentActivity []models.ActivityLog `json:"recentActivity"`
}

type listResponse struct {
	Message    string                          `json:"message"`
	Workspaces []membershipstore.UserWorkspace `json:"workspaces"`
}

// HandleCreate handles POST /create.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in createInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := inputval.Validate(in).Err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	ws, err := h.Provisioning.CreateWorkspace(ctx, userID, in.Name, in.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.AuditLog.WorkspaceCreated(ctx, r, userID, ws.ID, ws.Name)
	respond.JSON(w, http.StatusCreated, workspaceResponse{
		Message:   "Workspace created successfully",
		Workspace: ws,
	})
}

// ServeList handles GET /all.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Members.ListForUser(ctx, userID, 0)
	if err != nil {
		h.fail(w, r, apperr.Internal(err))
		return
	}
	respond.JSON(w, http.StatusOK, listResponse{
		Message:    "User workspaces fetched successfully",
		Workspaces: list,
	})
}

// ServeDetail handles GET /{workspaceId}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	acc, _ := memberpolicy.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ws, err := h.Workspaces.GetByID(ctx, acc.WorkspaceID)
	if errors.Is(err, workspacestore.ErrNotFound) {
		h.fail(w, r, membership.ErrWorkspaceNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal(err))
		return
	}

	recent, err := h.Activity.RecentForWorkspace(ctx, ws.ID, recentActivityLimit)
	if err != nil {
		// Activity is best effort.
		h.Log.Warn("recent workspace activity unavailable",
			zap.String("workspace_id", ws.ID.Hex()), zap.Error(err))
		recent = []models.ActivityLog{}
	}

	respond.JSON(w, http.StatusOK, detailResponse{
		Message:        "Workspace fetched successfully",
		Workspace:      ws,
		Role:           acc.Role,
		RecentActivity: recent,
	})
}

// HandleResetInviteCode handles PUT /{workspaceId}/invite-code/reset.
func (h *Handler) HandleResetInviteCode(w http.ResponseWriter, r *http.Request) {
	acc, _ := memberpolicy.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ws, err := h.Workspaces.ResetInviteCode(ctx, acc.WorkspaceID)
	if errors.Is(err, workspacestore.ErrNotFound) {
		h.fail(w, r, membership.ErrWorkspaceNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal(err))
		return
	}

	h.AuditLog.InviteCodeReset(ctx, r, acc.UserID, ws.ID)
	respond.JSON(w, http.StatusOK, workspaceResponse{
		Message:   "Invite code reset successfully",
		Workspace: ws,
	})
}
