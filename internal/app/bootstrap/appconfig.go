// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging, CORS and request limits.
// Everything here is specific to teamhub and is loaded in LoadConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: teamhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime (default: 24h)

	// HTTP surface
	BasePath                  string // Prefix for every API route (default: /api)
	BaseURL                   string // Public origin of this API, used to build the OAuth redirect
	FrontendGoogleCallbackURL string // Where the Google callback sends the browser afterwards

	// Google OAuth (blank client id disables the flow)
	GoogleClientID     string
	GoogleClientSecret string

	// Audit logging destinations: all, db, log or off
	AuditLogAuth       string
	AuditLogMembership string

	// Per-minute request budgets
	RateLimitLoginPerMin int // per client IP on register and login
	RateLimitJoinPerMin  int // per user on invite-code joins

	// Background work
	OAuthStateCleanupInterval time.Duration
	IntegrityCheckSchedule    string // cron spec; blank disables the owner integrity check

	// Name given to the workspace created at sign-up
	DefaultWorkspaceName string
}

// GoogleCallbackURL is the redirect URL registered with Google.
func (c AppConfig) GoogleCallbackURL() string {
	return c.BaseURL + c.BasePath + "/auth/google/callback"
}
