// internal/app/features/workspaces/routes.go
package workspaces

import (
	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the workspace routes. Every route requires a signed-in user;
// routes naming a workspace also require membership.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	// CREATE - new workspace owned by the caller
	r.Post("/create", h.HandleCreate)

	// LIST - workspaces the caller belongs to
	r.Get("/all", h.ServeList)

	// DETAIL - one workspace, including its invite code
	r.With(h.Gate.Require(authz.ViewOnly)).Get("/{workspaceId}", h.ServeDetail)

	// INVITE CODE - rotate the self-join token
	r.With(h.Gate.Require(authz.ManageWorkspaceSettings)).Put("/{workspaceId}/invite-code/reset", h.HandleResetInviteCode)

	return r
}
