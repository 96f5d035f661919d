// internal/app/features/members/routes.go
package members

import (
	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts all member routes under the path where the caller mounts it.
// Typically: r.Mount("/member", members.Routes(handler, sessionMgr))
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		join := pr.With()
		if h.JoinLimit != nil {
			join = pr.With(h.JoinLimit)
		}
		join.Post("/workspace/{inviteCode}/join", h.HandleJoin)
		pr.Post("/workspace/{workspaceId}/leave", h.HandleLeave)

		// Gated on the caller's role in {workspaceId}
		pr.With(h.Gate.Require(authz.ViewOnly)).Get("/workspace/{workspaceId}/all", h.ServeList)
		pr.With(h.Gate.Require(authz.ViewOnly)).Get("/workspace/{workspaceId}/count", h.ServeCount)
		pr.With(h.Gate.Require(authz.ViewOnly)).Get("/{memberId}/workspace/{workspaceId}", h.ServeMember)
		pr.With(h.Gate.Require(authz.AddMember)).Post("/workspace/{workspaceId}/add", h.HandleAdd)
		pr.With(h.Gate.Require(authz.ChangeMemberRole)).Put("/{memberId}/workspace/{workspaceId}/role", h.HandleUpdateRole)
		pr.With(h.Gate.Require(authz.RemoveMember)).Delete("/{memberId}/workspace/{workspaceId}", h.HandleRemove)
	})

	return r
}
