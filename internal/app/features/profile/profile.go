// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	workspacestore "github.com/dalemusser/teamhub/internal/app/store/workspaces"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/teamhub/internal/app/system/inputval"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// loadUser returns the caller's user record with its current workspace expanded.
func (h *Handler) loadUser(ctx context.Context, id primitive.ObjectID) (userView, error) {
	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		return userView{}, errUserNotFound
	}
	if err != nil {
		return userView{}, err
	}
	return h.view(ctx, u)
}

func (h *Handler) view(ctx context.Context, u *models.User) (userView, error) {
	v := userView{User: *u}
	if u.CurrentWorkspace == nil {
		return v, nil
	}
	sum, err := h.Workspaces.Summary(ctx, *u.CurrentWorkspace)
	switch {
	case errors.Is(err, workspacestore.ErrNotFound):
		// Dangling reference; show no current workspace.
	case err != nil:
		return userView{}, err
	default:
		v.CurrentWorkspace = &sum
	}
	return v, nil
}

// ServeCurrent handles GET /current.
func (h *Handler) ServeCurrent(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	v, err := h.loadUser(ctx, uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, userResponse{Message: "Current user fetched successfully", User: v})
}

// ServeProfile handles GET /profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	resp := profileResponse{Message: "User profile fetched successfully"}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := h.loadUser(gctx, uid)
		resp.User = v
		return err
	})
	g.Go(func() error {
		n, err := h.Memberships.CountByUser(gctx, uid)
		resp.Statistics.Workspaces = n
		return err
	})
	g.Go(func() error {
		rows, err := h.Memberships.ListForUser(gctx, uid, recentWorkspacesLimit)
		if err != nil {
			return err
		}
		resp.RecentWorkspaces = make([]recentWorkspace, 0, len(rows))
		for _, m := range rows {
			resp.RecentWorkspaces = append(resp.RecentWorkspaces, recentWorkspace{
				WorkspaceID: m.Workspace.ID,
				Name:        m.Workspace.Name,
				Description: m.Workspace.Description,
				Role:        m.Role.Name,
				JoinedAt:    m.JoinedAt,
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}

// HandleUpdateProfile handles PUT /profile.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in updateProfileInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	upd, fields, err := in.toUpdate()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if upd.Email != nil {
		taken, err := h.Users.EmailExistsForOther(ctx, *upd.Email, uid)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if taken {
			h.fail(w, r, errEmailInUse)
			return
		}
	}
	if upd.CurrentWorkspace != nil {
		member, err := h.Memberships.Exists(ctx, uid, *upd.CurrentWorkspace)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !member {
			h.fail(w, r, errNotMember)
			return
		}
	}

	u, err := h.Users.UpdateProfile(ctx, uid, upd)
	switch {
	case errors.Is(err, userstore.ErrDuplicateEmail):
		h.fail(w, r, errEmailInUse)
		return
	case errors.Is(err, userstore.ErrNotFound):
		h.fail(w, r, errUserNotFound)
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}

	h.AuditLog.ProfileUpdated(ctx, r, uid, fields)

	v, err := h.view(ctx, u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, userResponse{Message: "Profile updated successfully", User: v})
}

var (
	errEmailInUse = apperr.Conflict("Email is already in use")
	errNotMember  = apperr.Forbidden("You are not a member of this workspace")
	errNoFields   = apperr.Validation("At least one field must be provided for update", nil)
)

// toUpdate validates the input and converts it into a store update plus the
// list of fields it touches, in request order.
func (in updateProfileInput) toUpdate() (userstore.ProfileUpdate, []string, error) {
	if in.Name != nil {
		n := htmlsanitize.PlainText(*in.Name)
		in.Name = &n
		if n == "" {
			return userstore.ProfileUpdate{}, nil, apperr.Validation("Name must be at least 2 characters.", map[string]string{"name": "Name must be at least 2 characters."})
		}
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) == "" {
		return userstore.ProfileUpdate{}, nil, apperr.Validation("A valid email address is required.", map[string]string{"email": "A valid email address is required."})
	}
	if in.Description != nil {
		d := htmlsanitize.PlainText(*in.Description)
		in.Description = &d
	}
	if err := inputval.Validate(in).Err(); err != nil {
		return userstore.ProfileUpdate{}, nil, err
	}

	var upd userstore.ProfileUpdate
	var fields []string
	if in.Name != nil {
		upd.Name = in.Name
		fields = append(fields, "name")
	}
	if in.Email != nil {
		upd.Email = in.Email
		fields = append(fields, "email")
	}
	if in.ProfilePicture != nil {
		pic := strings.TrimSpace(*in.ProfilePicture)
		upd.ProfilePicture = &pic
		fields = append(fields, "profilePicture")
	}
	if in.Description != nil {
		upd.Description = in.Description
		fields = append(fields, "description")
	}
	if in.CurrentWorkspace.Set {
		switch {
		case in.CurrentWorkspace.Null:
			upd.ClearWorkspace = true
		default:
			id, err := primitive.ObjectIDFromHex(in.CurrentWorkspace.Value)
			if err != nil {
				msg := "Invalid workspace ID format"
				return userstore.ProfileUpdate{}, nil, apperr.Validation(msg, map[string]string{"currentWorkspace": msg})
			}
			upd.CurrentWorkspace = &id
		}
		fields = append(fields, "currentWorkspace")
	}

	if upd.IsEmpty() {
		return userstore.ProfileUpdate{}, nil, errNoFields
	}
	return upd, fields, nil
}

// HandleDeactivate handles DELETE /account.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.Deactivate(ctx, uid); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			err = errUserNotFound
		}
		h.fail(w, r, err)
		return
	}
	h.AuditLog.AccountDeactivated(ctx, r, uid)

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("clear session after deactivation", zap.Error(err), zap.String("user_id", uid.Hex()))
	}
	respond.Message(w, http.StatusOK, "Account deactivated successfully")
}
