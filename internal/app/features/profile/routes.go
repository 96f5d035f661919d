// internal/app/features/profile/routes.go
package profile

import (
	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/current", h.ServeCurrent)
	r.Get("/profile", h.ServeProfile)
	r.Put("/profile", h.HandleUpdateProfile)
	r.Put("/password", h.HandleChangePassword)
	r.Get("/activity", h.ServeActivity)
	r.Delete("/account", h.HandleDeactivate)
	return r
}
