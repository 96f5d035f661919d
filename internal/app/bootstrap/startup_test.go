package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/teamhub/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testAppConfig() AppConfig {
	return AppConfig{
		MongoURI:                  "mongodb://localhost:27017",
		MongoDatabase:             "teamhub",
		SessionKey:                "test-session-key-0123456789ABCDEF0123456789",
		SessionName:               "teamhub-session",
		SessionMaxAge:             24 * time.Hour,
		BasePath:                  "/api",
		BaseURL:                   "http://localhost:8080",
		FrontendGoogleCallbackURL: "http://localhost:3000/auth/google/callback",
		AuditLogAuth:              "all",
		AuditLogMembership:        "all",
		RateLimitLoginPerMin:      10,
		RateLimitJoinPerMin:       20,
		OAuthStateCleanupInterval: time.Hour,
		IntegrityCheckSchedule:    "15 3 * * *",
		DefaultWorkspaceName:      "My Workspace",
	}
}

func TestValidateConfig(t *testing.T) {
	dev := &config.CoreConfig{Env: "dev"}
	prod := &config.CoreConfig{Env: "prod"}

	tests := []struct {
		name    string
		core    *config.CoreConfig
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{"defaults are valid", dev, func(c *AppConfig) {}, ""},
		{"bad mongo uri", dev, func(c *AppConfig) { c.MongoURI = "postgres://nope" }, "MongoDB URI"},
		{"missing database", dev, func(c *AppConfig) { c.MongoDatabase = "" }, "mongo_database"},
		{"short key ok in dev", dev, func(c *AppConfig) { c.SessionKey = "short" }, ""},
		{"short key rejected in prod", prod, func(c *AppConfig) { c.SessionKey = "short" }, "session_key"},
		{"non-positive max age", dev, func(c *AppConfig) { c.SessionMaxAge = 0 }, "session_max_age"},
		{"base path without slash", dev, func(c *AppConfig) { c.BasePath = "api" }, "base_path"},
		{"base path with query", dev, func(c *AppConfig) { c.BasePath = "/api?x=1" }, "base_path"},
		{"empty base path ok", dev, func(c *AppConfig) { c.BasePath = "" }, ""},
		{"login limit zero", dev, func(c *AppConfig) { c.RateLimitLoginPerMin = 0 }, "rate_limit_login_per_min"},
		{"join limit zero", dev, func(c *AppConfig) { c.RateLimitJoinPerMin = 0 }, "rate_limit_join_per_min"},
		{"cleanup interval zero", dev, func(c *AppConfig) { c.OAuthStateCleanupInterval = 0 }, "oauth_state_cleanup_interval"},
		{"bad audit mode", dev, func(c *AppConfig) { c.AuditLogMembership = "sometimes" }, "audit_log_membership"},
		{"bad schedule", dev, func(c *AppConfig) { c.IntegrityCheckSchedule = "every day" }, "integrity_check_schedule"},
		{"blank schedule disables check", dev, func(c *AppConfig) { c.IntegrityCheckSchedule = "" }, ""},
		{"google id without secret", dev, func(c *AppConfig) { c.GoogleClientID = "id" }, "google_client_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAppConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(tt.core, cfg, testLogger())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{
		"/api":   "/api",
		"/api/":  "/api",
		" /v1 ":  "/v1",
		"/":      "",
		"":       "",
		"/a/b//": "/a/b",
	} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGoogleCallbackURL(t *testing.T) {
	cfg := testAppConfig()
	if got := cfg.GoogleCallbackURL(); got != "http://localhost:8080/api/auth/google/callback" {
		t.Errorf("GoogleCallbackURL() = %q", got)
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db := testutil.SetupBareDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{TeamHubMongoClient: db.Client(), TeamHubMongoDatabase: db}
	for i := 0; i < 2; i++ {
		if err := EnsureSchema(ctx, &config.CoreConfig{Env: "dev"}, testAppConfig(), deps, testLogger()); err != nil {
			t.Fatalf("EnsureSchema run %d: %v", i+1, err)
		}
	}

	n, err := db.Collection("roles").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count roles: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 seeded roles, got %d", n)
	}
}

func TestStartup_RequiresConnectDB(t *testing.T) {
	err := Startup(context.Background(), &config.CoreConfig{Env: "dev"}, testAppConfig(), DBDeps{}, testLogger())
	if err != errNoRuntime {
		t.Fatalf("expected errNoRuntime, got %v", err)
	}
	if _, err := BuildHandler(&config.CoreConfig{Env: "dev"}, testAppConfig(), DBDeps{}, testLogger()); err != errNotStarted {
		t.Fatalf("expected errNotStarted, got %v", err)
	}
}

// startApp runs EnsureSchema, Startup and BuildHandler against a fresh
// database and serves the result.
func startApp(t *testing.T, cfg AppConfig) (*httptest.Server, *runtime) {
	t.Helper()
	db := testutil.SetupBareDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	core := &config.CoreConfig{Env: "dev"}
	deps := DBDeps{TeamHubMongoClient: db.Client(), TeamHubMongoDatabase: db, runtime: &runtime{}}

	if err := EnsureSchema(ctx, core, cfg, deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := Startup(ctx, core, cfg, deps, testLogger()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopRuntime(ctx, deps.runtime, testLogger())
	})

	h, err := BuildHandler(core, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, deps.runtime
}

type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newAPIClient(t *testing.T, srv *httptest.Server) *apiClient {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &apiClient{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

func (c *apiClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(res.Body)
	_ = json.Unmarshal(raw, &out)
	return res.StatusCode, out
}

func TestBuildHandler_EndToEnd(t *testing.T) {
	srv, rt := startApp(t, testAppConfig())
	c := newAPIClient(t, srv)

	if rt.scheduler.Len() != 1 {
		t.Errorf("expected the integrity job to be scheduled, got %d jobs", rt.scheduler.Len())
	}

	if status, body := c.do(http.MethodGet, "/api/", nil); status != http.StatusOK || body["message"] != "API is running" {
		t.Fatalf("GET /api/ = %d %v", status, body)
	}

	status, body := c.do(http.MethodGet, "/api/health", nil)
	if status != http.StatusOK {
		t.Fatalf("GET /api/health = %d %v", status, body)
	}

	if status, _ := c.do(http.MethodGet, "/api/user/current", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", status)
	}

	status, body = c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ada Lovelace", "email": "ada@example.com", "password": testutil.TestPassword,
	})
	if status != http.StatusCreated {
		t.Fatalf("register = %d %v", status, body)
	}

	status, body = c.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ada@example.com", "password": testutil.TestPassword,
	})
	if status != http.StatusOK {
		t.Fatalf("login = %d %v", status, body)
	}

	status, body = c.do(http.MethodGet, "/api/user/current", nil)
	if status != http.StatusOK {
		t.Fatalf("current = %d %v", status, body)
	}

	status, body = c.do(http.MethodGet, "/api/workspace/all", nil)
	if status != http.StatusOK {
		t.Fatalf("workspace list = %d %v", status, body)
	}
	list, _ := body["workspaces"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected the sign-up workspace, got %v", body["workspaces"])
	}

	status, body = c.do(http.MethodPost, "/api/workspace/create", map[string]string{"name": "Second"})
	if status != http.StatusCreated {
		t.Fatalf("create workspace = %d %v", status, body)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/metrics", nil)
	res, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	raw, _ := io.ReadAll(res.Body)
	res.Body.Close()
	for _, name := range []string{"teamhub_logins_total", "teamhub_provisioning_total", "teamhub_http_request_duration_seconds", "go_goroutines"} {
		if !strings.Contains(string(raw), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}

	if status, body := c.do(http.MethodPost, "/api/auth/logout", nil); status != http.StatusOK {
		t.Fatalf("logout = %d %v", status, body)
	}
	if status, _ := c.do(http.MethodGet, "/api/user/current", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", status)
	}

	if status, body := c.do(http.MethodGet, "/api/nope", nil); status != http.StatusNotFound || body["message"] != "Route not found" {
		t.Errorf("unknown route = %d %v", status, body)
	}
}

func TestBuildHandler_LoginRateLimited(t *testing.T) {
	cfg := testAppConfig()
	cfg.RateLimitLoginPerMin = 2
	srv, _ := startApp(t, cfg)
	c := newAPIClient(t, srv)

	creds := map[string]string{"email": "nobody@example.com", "password": "Wrong1234"}
	for i := 0; i < 2; i++ {
		if status, _ := c.do(http.MethodPost, "/api/auth/login", creds); status == http.StatusTooManyRequests {
			t.Fatalf("attempt %d limited too early", i+1)
		}
	}
	if status, _ := c.do(http.MethodPost, "/api/auth/login", creds); status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %d", status)
	}
}

func TestBuildHandler_EmptyBasePath(t *testing.T) {
	cfg := testAppConfig()
	cfg.BasePath = ""
	cfg.IntegrityCheckSchedule = ""
	srv, rt := startApp(t, cfg)
	c := newAPIClient(t, srv)

	if rt.scheduler.Len() != 0 {
		t.Errorf("expected no scheduled jobs, got %d", rt.scheduler.Len())
	}
	if status, body := c.do(http.MethodGet, "/", nil); status != http.StatusOK || body["message"] != "API is running" {
		t.Fatalf("GET / = %d %v", status, body)
	}
	if status, _ := c.do(http.MethodGet, "/health", nil); status != http.StatusOK {
		t.Fatalf("GET /health = %d", status)
	}
}
