// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/teamhub/internal/app/services/membership"
	"github.com/dalemusser/teamhub/internal/app/services/provisioning"
	activitystore "github.com/dalemusser/teamhub/internal/app/store/activity"
	"github.com/dalemusser/teamhub/internal/app/store/oauthstate"
	rolestore "github.com/dalemusser/teamhub/internal/app/store/roles"
	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	"github.com/dalemusser/teamhub/internal/app/system/auditlog"
	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/metrics"
	"github.com/dalemusser/teamhub/internal/app/system/ratelimit"
	"github.com/dalemusser/teamhub/internal/app/system/tasks"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"github.com/dalemusser/teamhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var errNoRuntime = errors.New("bootstrap: DBDeps was not created by ConnectDB")

// runtime is the shared state built once in Startup.
type runtime struct {
	sessions     *auth.SessionManager
	roles        *rolestore.Catalog
	audit        *auditlog.Logger
	provisioning *provisioning.Service
	members      *membership.Service

	registry *prometheus.Registry
	metrics  *metrics.Collector

	loginLimit *ratelimit.Limiter
	joinLimit  *ratelimit.Limiter

	stateCleanup *workers.OAuthStateCleanup
	scheduler    *tasks.Scheduler
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It builds
// the services shared by every feature and starts the background workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	rt := deps.runtime
	if rt == nil {
		return errNoRuntime
	}
	db := deps.TeamHubMongoDatabase

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		cur := timeouts.Current()
		logger.Info("timeouts overridden from environment",
			zap.Duration("ping", cur.Ping),
			zap.Duration("short", cur.Short),
			zap.Duration("medium", cur.Medium),
			zap.Duration("long", cur.Long))
	}

	rt.roles = rolestore.NewCatalog(rolestore.New(db))
	vctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	err := rt.roles.Verify(vctx)
	cancel()
	if err != nil {
		logger.Error("role catalog incomplete", zap.Error(err))
		return fmt.Errorf("verify roles: %w", err)
	}

	rt.registry = prometheus.NewRegistry()
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = metrics.NewCollector(rt.registry)

	rt.audit = auditlog.New(activitystore.New(db), logger, auditlog.Config{
		Auth:       appCfg.AuditLogAuth,
		Membership: appCfg.AuditLogMembership,
	})

	rt.provisioning = provisioning.New(db, rt.roles, logger,
		provisioning.WithDefaultWorkspaceName(appCfg.DefaultWorkspaceName),
		provisioning.WithRecorder(rt.metrics))
	rt.members = membership.New(db, rt.roles, rt.metrics, membership.WithLogger(logger))

	secure := coreCfg != nil && coreCfg.Env == "prod"
	rt.sessions, err = auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return err
	}
	// Fresh user data on each request: deactivation and profile edits take
	// effect immediately.
	rt.sessions.SetUserFetcher(userstore.NewFetcher(db))

	rejected := ratelimit.WithRejectHook(rt.metrics.RateLimited)
	rt.loginLimit = ratelimit.PerMinute("login", appCfg.RateLimitLoginPerMin, logger, rejected)
	rt.joinLimit = ratelimit.PerMinute("join", appCfg.RateLimitJoinPerMin, logger, rejected)

	rt.stateCleanup = workers.NewOAuthStateCleanup(oauthstate.New(db), logger, appCfg.OAuthStateCleanupInterval)
	rt.stateCleanup.Start()

	rt.scheduler = tasks.NewScheduler(logger)
	if appCfg.IntegrityCheckSchedule != "" {
		if err := rt.scheduler.Add(tasks.OwnerIntegrityJob(rt.members, logger, appCfg.IntegrityCheckSchedule)); err != nil {
			rt.stateCleanup.Stop()
			return err
		}
	}
	rt.scheduler.Start()

	return nil
}
