// internal/app/features/login/login.go
package login

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/inputval"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.uber.org/zap"
)

type loginInput struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type loginResponse struct {
	Message string      `json:"message"`
	User    models.User `json:"user"`
}

// HandleLogin handles POST /login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := inputval.Validate(in).Err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Provisioning.VerifyLocalCredentials(ctx, in.Email, in.Password)
	h.Metrics.Login("password", err)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.SessionMgr.SignIn(w, r, &auth.SessionUser{ID: u.ID.Hex(), Name: u.Name, Email: u.Email}); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		respond.Message(w, http.StatusInternalServerError, "Login failed")
		return
	}

	now := time.Now().UTC()
	if err := h.Users.TouchLastLogin(ctx, u.ID, now); err != nil {
		h.Log.Warn("failed to record last login", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	} else {
		u.LastLogin = &now
	}

	h.AuditLog.Login(ctx, r, u.ID, "email")
	respond.JSON(w, http.StatusOK, loginResponse{Message: "Login successful", User: *u})
}
