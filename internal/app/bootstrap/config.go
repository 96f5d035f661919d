// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/auditlog"
	"github.com/dalemusser/teamhub/internal/app/system/tasks"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// minProdSessionKeyLen is the shortest session key accepted in prod.
const minProdSessionKeyLen = 32

// appConfigKeys defines the configuration keys for teamhub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TEAMHUB_MONGO_URI, TEAMHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "teamhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "teamhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime (e.g., 24h, 90m)"},

	// HTTP surface
	{Name: "base_path", Default: "/api", Desc: "Path prefix for all API routes"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public origin of this API (used for the OAuth redirect URL)"},
	{Name: "frontend_google_callback_url", Default: "http://localhost:3000/auth/google/callback", Desc: "Frontend page that receives the Google login outcome"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID (blank disables Google login)"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_membership", Default: "all", Desc: "Membership event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Rate limits
	{Name: "rate_limit_login_per_min", Default: 10, Desc: "Register/login requests per minute per client IP"},
	{Name: "rate_limit_join_per_min", Default: 20, Desc: "Invite-code joins per minute per user"},

	// Background work
	{Name: "oauth_state_cleanup_interval", Default: "15m", Desc: "How often expired OAuth states are purged"},
	{Name: "integrity_check_schedule", Default: "15 3 * * *", Desc: "Cron schedule (UTC) of the workspace owner integrity check; blank disables it"},

	// Default workspace configuration
	{Name: "default_workspace_name", Default: "My Workspace", Desc: "Name of the workspace created at sign-up"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges, in order of precedence,
// command-line flags, TEAMHUB_* environment variables, config files and
// the defaults above.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TEAMHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		BasePath:                  normalizeBasePath(appValues.String("base_path")),
		BaseURL:                   strings.TrimRight(appValues.String("base_url"), "/"),
		FrontendGoogleCallbackURL: appValues.String("frontend_google_callback_url"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		AuditLogAuth:       appValues.String("audit_log_auth"),
		AuditLogMembership: appValues.String("audit_log_membership"),

		RateLimitLoginPerMin: appValues.Int("rate_limit_login_per_min"),
		RateLimitJoinPerMin:  appValues.Int("rate_limit_join_per_min"),

		OAuthStateCleanupInterval: appValues.Duration("oauth_state_cleanup_interval", 15*time.Minute),
		IntegrityCheckSchedule:    strings.TrimSpace(appValues.String("integrity_check_schedule")),

		DefaultWorkspaceName: appValues.String("default_workspace_name"),
	}

	return coreCfg, appCfg, nil
}

// normalizeBasePath trims trailing slashes so "/api/" and "/api" mount the
// same way. "/" becomes "".
func normalizeBasePath(p string) string {
	return strings.TrimRight(strings.TrimSpace(p), "/")
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}

	if coreCfg != nil && coreCfg.Env == "prod" && len(appCfg.SessionKey) < minProdSessionKeyLen {
		return fmt.Errorf("session_key must be at least %d characters in prod", minProdSessionKeyLen)
	}
	if appCfg.SessionMaxAge <= 0 {
		return fmt.Errorf("session_max_age must be positive")
	}

	if appCfg.BasePath != "" && (!strings.HasPrefix(appCfg.BasePath, "/") || strings.ContainsAny(appCfg.BasePath, " ?#")) {
		return fmt.Errorf("base_path %q must start with / and contain no spaces, query or fragment", appCfg.BasePath)
	}

	if appCfg.RateLimitLoginPerMin < 1 {
		return fmt.Errorf("rate_limit_login_per_min must be at least 1")
	}
	if appCfg.RateLimitJoinPerMin < 1 {
		return fmt.Errorf("rate_limit_join_per_min must be at least 1")
	}
	if appCfg.OAuthStateCleanupInterval <= 0 {
		return fmt.Errorf("oauth_state_cleanup_interval must be positive")
	}

	for key, mode := range map[string]string{
		"audit_log_auth":       appCfg.AuditLogAuth,
		"audit_log_membership": appCfg.AuditLogMembership,
	} {
		if !auditlog.ValidMode(mode) {
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, mode)
		}
	}

	if appCfg.IntegrityCheckSchedule != "" {
		if err := tasks.ValidSchedule(appCfg.IntegrityCheckSchedule); err != nil {
			return fmt.Errorf("integrity_check_schedule: %w", err)
		}
	}

	if appCfg.GoogleClientID != "" && appCfg.GoogleClientSecret == "" {
		return fmt.Errorf("google_client_secret is required when google_client_id is set")
	}

	return nil
}
