// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes serves /register and /login. Both are public.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	if h.Limit != nil {
		r.Use(h.Limit)
	}
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	return r
}
