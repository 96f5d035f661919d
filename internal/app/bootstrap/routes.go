// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	authgooglefeature "github.com/dalemusser/teamhub/internal/app/features/authgoogle"
	healthfeature "github.com/dalemusser/teamhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/teamhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/teamhub/internal/app/features/logout"
	membersfeature "github.com/dalemusser/teamhub/internal/app/features/members"
	profilefeature "github.com/dalemusser/teamhub/internal/app/features/profile"
	workspacesfeature "github.com/dalemusser/teamhub/internal/app/features/workspaces"
	"github.com/dalemusser/teamhub/internal/app/policy/memberpolicy"
	"github.com/dalemusser/teamhub/internal/app/system/metrics"
	"github.com/dalemusser/teamhub/internal/app/system/ratelimit"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var errNotStarted = errors.New("bootstrap: BuildHandler called before Startup")

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. The API lives under base_path; /metrics is served
// at the root for the scraper.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := deps.runtime
	if rt == nil || rt.sessions == nil {
		return nil, errNotStarted
	}
	db := deps.TeamHubMongoDatabase

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.metrics.Middleware)

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(rt.sessions.LoadSessionUser)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Message(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Message(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(rt.registry))

	api := chi.NewRouter()
	api.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Message(w, http.StatusNotFound, "Route not found")
	})

	api.Get("/", healthfeature.ServeRoot)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.TeamHubMongoClient, rt.roles, logger)
	api.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(db, rt.provisioning, rt.sessions, rt.audit, rt.metrics, logger)
	loginHandler.Limit = rt.loginLimit.Middleware(ratelimit.ByIP)

	logoutHandler := logoutfeature.NewHandler(rt.sessions, rt.audit, logger)

	googleHandler := authgooglefeature.NewHandler(db, rt.provisioning, rt.sessions, rt.audit, rt.metrics,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret,
		appCfg.GoogleCallbackURL(), appCfg.FrontendGoogleCallbackURL, logger)

	api.Route("/auth", func(ar chi.Router) {
		ar.Mount("/logout", logoutfeature.Routes(logoutHandler, rt.sessions))
		ar.Mount("/google", authgooglefeature.Routes(googleHandler))
		ar.Mount("/", loginfeature.Routes(loginHandler))
	})

	// Signed-in user's own account
	profileHandler := profilefeature.NewHandler(db, rt.sessions, rt.audit, logger)
	api.Mount("/user", profilefeature.Routes(profileHandler, rt.sessions))

	// Workspaces and memberships, gated on the caller's role
	gate := memberpolicy.New(rt.members, logger)
	workspacesHandler := workspacesfeature.NewHandler(db, rt.provisioning, gate, rt.audit, logger)
	api.Mount("/workspace", workspacesfeature.Routes(workspacesHandler, rt.sessions))

	membersHandler := membersfeature.NewHandler(rt.members, rt.audit, logger)
	membersHandler.JoinLimit = rt.joinLimit.Middleware(ratelimit.ByUser)
	api.Mount("/member", membersfeature.Routes(membersHandler, rt.sessions))

	if appCfg.BasePath == "" {
		r.Mount("/", api)
	} else {
		r.Mount(appCfg.BasePath, api)
	}

	logger.Info("routes mounted", zap.String("base_path", appCfg.BasePath))
	return r, nil
}
