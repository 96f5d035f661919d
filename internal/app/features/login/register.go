// internal/app/features/login/register.go
package login

import (
	"context"
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/services/provisioning"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/authutil"
	"github.com/dalemusser/teamhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/teamhub/internal/app/system/inputval"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
)

type registerInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100" label:"Name"`
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

// HandleRegister handles POST /register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.Name = htmlsanitize.PlainText(in.Name)
	if err := inputval.Validate(in).Err(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		h.fail(w, r, apperr.Validation(authutil.PasswordRules(), map[string]string{"password": err.Error()}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Provisioning.RegisterLocalUser(ctx, provisioning.LocalRegistration{
		Email:    in.Email,
		Name:     in.Name,
		Password: in.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.AuditLog.Registered(ctx, r, res.User.ID, "email")
	h.AuditLog.WorkspaceCreated(ctx, r, res.User.ID, res.WorkspaceID, h.Provisioning.WorkspaceName())
	respond.Message(w, http.StatusCreated, "User registered successfully")
}
