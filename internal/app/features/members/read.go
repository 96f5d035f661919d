// internal/app/features/members/read.go
package members

import (
	"context"
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/policy/memberpolicy"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
)

// ServeList handles GET /workspace/{workspaceId}/all.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	acc, _ := memberpolicy.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Members.ListMembers(ctx, acc.WorkspaceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, listResponse{
		Message:      "Members retrieved successfully",
		Members:      list.Members,
		TotalMembers: list.Total,
	})
}

// ServeCount handles GET /workspace/{workspaceId}/count.
func (h *Handler) ServeCount(w http.ResponseWriter, r *http.Request) {
	acc, _ := memberpolicy.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Members.Count(ctx, acc.WorkspaceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, countResponse{
		Message: "Member count retrieved successfully",
		Count:   n,
	})
}

// ServeMember handles GET /{memberId}/workspace/{workspaceId}.
func (h *Handler) ServeMember(w http.ResponseWriter, r *http.Request) {
	acc, _ := memberpolicy.FromRequest(r)
	memberID, err := memberIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Members.GetMember(ctx, memberID, acc.WorkspaceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, memberResponse{
		Message: "Member retrieved successfully",
		Member:  m,
	})
}
