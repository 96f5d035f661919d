// internal/app/features/profile/password.go
package profile

import (
	"context"
	"errors"
	"net/http"

	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/authutil"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/app/system/inputval"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
)

var (
	errOAuthPassword   = apperr.Validation("Cannot change password for OAuth accounts", nil)
	errWrongPassword   = apperr.Validation("Current password is incorrect", map[string]string{"currentPassword": "Current password is incorrect"})
	errPasswordsDiffer = apperr.Validation("Passwords do not match", map[string]string{"confirmPassword": "Passwords do not match"})
	errPasswordReused  = apperr.Validation("New password must be different from current password", map[string]string{"newPassword": "New password must be different from current password"})
)

// HandleChangePassword handles PUT /password.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in changePasswordInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := inputval.Validate(in).Err(); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.NewPassword != in.ConfirmPassword {
		h.fail(w, r, errPasswordsDiffer)
		return
	}
	if in.NewPassword == in.CurrentPassword {
		h.fail(w, r, errPasswordReused)
		return
	}
	if err := authutil.ValidatePassword(in.NewPassword); err != nil {
		h.fail(w, r, apperr.Validation(authutil.PasswordRules(), map[string]string{"newPassword": err.Error()}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, userstore.ErrNotFound) {
		h.fail(w, r, errUserNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !u.HasPassword() {
		h.fail(w, r, errOAuthPassword)
		return
	}
	if !authutil.CheckPassword(in.CurrentPassword, u.PasswordHash) {
		h.fail(w, r, errWrongPassword)
		return
	}

	hash, err := authutil.HashPassword(in.NewPassword)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Users.SetPasswordHash(ctx, uid, hash); err != nil {
		h.fail(w, r, err)
		return
	}

	h.AuditLog.PasswordChanged(ctx, r, uid)
	respond.Message(w, http.StatusOK, "Password changed successfully")
}
