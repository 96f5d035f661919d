// Package memberpolicy gates workspace-scoped routes on the caller's role.
//
// Authorization rules:
//   - The caller must be signed in (401 otherwise)
//   - The workspace in the URL must exist and the caller must be a member;
//     a malformed id, a missing workspace and a non-member all get the same
//     404 so workspace ids cannot be probed
//   - The caller's role must hold at least one of the required permissions
//     (403 otherwise)
package memberpolicy

import (
	"context"
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/services/membership"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// WorkspaceParam is the URL parameter holding the workspace id.
const WorkspaceParam = "workspaceId"

// RoleResolver returns the role name a user holds in a workspace.
type RoleResolver interface {
	GetRoleInWorkspace(ctx context.Context, userID, workspaceID primitive.ObjectID) (string, error)
}

// Access is what the gate established about the caller.
type Access struct {
	UserID      primitive.ObjectID
	WorkspaceID primitive.ObjectID
	Role        string
}

// Can reports whether the caller's role holds perm.
func (a Access) Can(perm string) bool {
	return authz.Has(a.Role, perm)
}

type ctxKey struct{}

// FromRequest returns the Access stored by Require.
func FromRequest(r *http.Request) (Access, bool) {
	a, ok := r.Context().Value(ctxKey{}).(Access)
	return a, ok
}

// WithAccess stores a into r's context. Handler tests use it to skip the gate.
func WithAccess(r *http.Request, a Access) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKey{}, a))
}

// Gate builds permission middleware for workspace routes.
type Gate struct {
	roles RoleResolver
	log   *zap.Logger
}

func New(roles RoleResolver, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{roles: roles, log: log}
}

// Require admits the request when the caller's role in the URL's workspace
// holds at least one of perms.
func (g *Gate) Require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, userID, ok := authz.UserCtx(r)
			if !ok {
				respond.Message(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			wsID, err := primitive.ObjectIDFromHex(chi.URLParam(r, WorkspaceParam))
			if err != nil {
				respond.Error(w, r, g.log, membership.ErrWorkspaceNotFound)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
			role, err := g.roles.GetRoleInWorkspace(ctx, userID, wsID)
			cancel()
			if err != nil {
				if apperr.KindOf(err) == apperr.KindNotFound {
					err = membership.ErrWorkspaceNotFound
				}
				respond.Error(w, r, g.log, err)
				return
			}

			if err := authz.CheckPermission(role, perms...); err != nil {
				g.log.Debug("permission denied",
					zap.String("user_id", userID.Hex()),
					zap.String("workspace_id", wsID.Hex()),
					zap.String("role", role),
					zap.Strings("required", perms))
				respond.Error(w, r, g.log, err)
				return
			}

			next.ServeHTTP(w, WithAccess(r, Access{UserID: userID, WorkspaceID: wsID, Role: role}))
		})
	}
}

