// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/teamhub/internal/app/services/provisioning"
	accountstore "github.com/dalemusser/teamhub/internal/app/store/accounts"
	"github.com/dalemusser/teamhub/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/auditlog"
	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/metrics"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultUserInfoURL is Google's v2 userinfo endpoint.
const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// stateTTL bounds how long a consent round trip may take.
const stateTTL = 10 * time.Minute

// Failure codes sent to the frontend callback.
const (
	ErrNotAuthenticated = "not_authenticated"
	ErrNoWorkspace      = "no_workspace"
	ErrServerError      = "server_error"
	ErrInvalidState     = "invalid_state"
	ErrNotConfigured    = "not_configured"
)

type Handler struct {
	Provisioning *provisioning.Service
	Users        *userstore.Store
	StateStore   *oauthstate.Store
	SessionMgr   *auth.SessionManager
	AuditLog     *auditlog.Logger
	Metrics      metrics.Recorder
	Log          *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://api.example.com/api/auth/google/callback"

	// FrontendCallbackURL receives ?status=success|failure&error=<code>.
	FrontendCallbackURL string

	// Endpoint and UserInfoURL default to Google's; tests point them at a stub.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

func NewHandler(
	db *mongo.Database,
	prov *provisioning.Service,
	sessionMgr *auth.SessionManager,
	audit *auditlog.Logger,
	rec metrics.Recorder,
	clientID, clientSecret, callbackURL, frontendCallbackURL string,
	logger *zap.Logger,
) *Handler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Handler{
		Provisioning:        prov,
		Users:               userstore.New(db),
		StateStore:          oauthstate.New(db),
		SessionMgr:          sessionMgr,
		AuditLog:            audit,
		Metrics:             rec,
		Log:                 logger,
		ClientID:            clientID,
		ClientSecret:        clientSecret,
		RedirectURL:         callbackURL,
		FrontendCallbackURL: frontendCallbackURL,
		Endpoint:            google.Endpoint,
		UserInfoURL:         DefaultUserInfoURL,
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: h.Endpoint,
	}
}

// IsConfigured reports whether client credentials are present.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Initiates the Google OAuth flow by redirecting to Google's consent screen.   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.fail(w, r, ErrNotConfigured)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		h.fail(w, r, ErrServerError)
		return
	}

	returnURL := urlutil.SafeReturn(query.Get(r, "return"), "", "")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.StateStore.Save(ctx, state, returnURL, stateTTL); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		h.fail(w, r, ErrServerError)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline)
	h.Log.Debug("initiating Google OAuth flow", zap.String("return_url", returnURL))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Exchanges the code, fetches the profile, provisions or links the user and    |
| creates the session.                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", q.Get("error_description")))
		h.loginFailed(w, r, ErrNotAuthenticated, nil)
		return
	}

	state := q.Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		h.loginFailed(w, r, ErrInvalidState, nil)
		return
	}

	sctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	returnURL, valid, err := h.StateStore.Consume(sctx, state)
	cancel()
	if err != nil {
		h.Log.Error("failed to consume OAuth state", zap.Error(err))
		h.loginFailed(w, r, ErrServerError, err)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.loginFailed(w, r, ErrInvalidState, nil)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		h.loginFailed(w, r, ErrNotAuthenticated, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	cfg := h.oauth2Config()
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		h.Log.Warn("failed to exchange OAuth code", zap.Error(err))
		h.loginFailed(w, r, ErrNotAuthenticated, err)
		return
	}

	gu, err := h.fetchUserInfo(ctx, cfg, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.loginFailed(w, r, ErrServerError, err)
		return
	}

	res, err := h.Provisioning.LoginOrRegisterOAuthUser(ctx, provisioning.OAuthProfile{
		Provider:    accountstore.ProviderGoogle,
		ProviderID:  gu.ID,
		DisplayName: gu.Name,
		Email:       gu.Email,
		Picture:     gu.Picture,
		Tokens:      tokensOf(token),
	})
	if err != nil {
		code := ErrServerError
		if k := apperr.KindOf(err); k == apperr.KindUnauthorized || k == apperr.KindValidation {
			code = ErrNotAuthenticated
		} else {
			h.Log.Error("Google login provisioning failed", zap.Error(err), zap.String("google_id", gu.ID))
		}
		h.loginFailed(w, r, code, err)
		return
	}

	u := res.User
	if err := h.SessionMgr.SignIn(w, r, &auth.SessionUser{ID: u.ID.Hex(), Name: u.Name, Email: u.Email}); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		h.loginFailed(w, r, ErrServerError, err)
		return
	}
	h.Metrics.Login("google", nil)

	if err := h.Users.TouchLastLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		h.Log.Warn("failed to record last login", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	}
	if res.Created {
		h.AuditLog.Registered(ctx, r, u.ID, "google")
		h.AuditLog.WorkspaceCreated(ctx, r, u.ID, res.WorkspaceID, h.Provisioning.WorkspaceName())
	}
	h.AuditLog.Login(ctx, r, u.ID, "google")

	h.Log.Info("user logged in via Google OAuth",
		zap.String("user_id", u.ID.Hex()),
		zap.Bool("created", res.Created))

	// The session stands; the frontend decides what to do without a workspace.
	if res.WorkspaceID.IsZero() {
		h.redirect(w, r, map[string]string{"status": "failure", "error": ErrNoWorkspace})
		return
	}
	params := map[string]string{"status": "success"}
	if returnURL != "" {
		params["return"] = returnURL
	}
	h.redirect(w, r, params)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

type googleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (h *Handler) fetchUserInfo(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var gu googleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &gu, nil
}

func tokensOf(t *oauth2.Token) models.Tokens {
	out := models.Tokens{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	if !t.Expiry.IsZero() {
		exp := t.Expiry.UTC()
		out.Expiry = &exp
	}
	return out
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, code string, err error) {
	h.Metrics.Login("google", loginError(err))
	h.fail(w, r, code)
}

// loginError keeps a failure counted even when no error value exists.
func loginError(err error) error {
	if err != nil {
		return err
	}
	return apperr.Unauthorized("Google login failed")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, code string) {
	h.redirect(w, r, map[string]string{"status": "failure", "error": code})
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, params map[string]string) {
	dest := urlutil.AddOrSetQueryParams(h.FrontendCallbackURL, params)
	http.Redirect(w, r, dest, http.StatusFound)
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
