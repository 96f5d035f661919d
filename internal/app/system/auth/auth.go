// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
	userName  = "user_name"
	userEmail = "user_email"
)

// minKeyLen is the recommended minimum session key length.
const minKeyLen = 32

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what we cache in the session & inject into r.Context().
type SessionUser struct {
	ID    string
	Name  string
	Email string
}

// UserFetcher loads the current state of a signed-in user.
// It returns (nil, nil) when the user no longer exists or is deactivated.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) (*SessionUser, error)
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u into the request context.
// Handler tests use it to bypass the cookie round-trip.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager owns the cookie store and the session middleware.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	logger  *zap.Logger
	fetcher UserFetcher
}

// NewSessionManager builds the cookie store.
//
// In production (secure=true), cookies are Secure + SameSite=None so a
// frontend on another origin can send them. In local dev over http, use
// secure=false so cookies are accepted (SameSite=Lax).
//
// An empty key is an error when secure is set. In dev an ephemeral random
// key is generated, which invalidates sessions on every restart.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" {
		return nil, errors.New("session name is empty")
	}

	key := []byte(sessionKey)
	switch {
	case len(key) == 0 && secure:
		return nil, fmt.Errorf("session key is empty; provide ≥%d random chars", minKeyLen)
	case len(key) == 0:
		key = securecookie.GenerateRandomKey(minKeyLen)
		if key == nil {
			return nil, errors.New("session key is empty and a random key could not be generated")
		}
		logger.Warn("session key not set; using an ephemeral key (sessions reset on restart)")
	case len(key) < minKeyLen:
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(key)))
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}
	store.MaxAge(store.Options.MaxAge)

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{store: store, name: name, logger: logger}, nil
}

// Name returns the cookie name.
func (sm *SessionManager) Name() string { return sm.name }

// SetUserFetcher installs a fetcher so each request sees current user state.
// Without one, the name and email cached in the cookie are used.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// GetSession returns the session for r. On a decode error (rotated key,
// tampered cookie) a fresh session is returned along with the error.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// SignIn marks the session authenticated for u and writes the cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u *SessionUser) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			sm.logger.Warn("session cookie invalid, using fresh session",
				zap.Error(err), zap.String("user_id", u.ID))
		} else {
			sm.logger.Error("session store error during sign-in, using fresh session",
				zap.Error(err), zap.String("user_id", u.ID))
		}
	}

	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userName] = u.Name
	sess.Values[userEmail] = u.Email
	return sess.Save(r, w)
}

// SignOut clears the session and expires the cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.GetSession(r)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadSessionUser injects the user into context if they are logged in.
// With a fetcher installed, a user that no longer exists or was deactivated
// is treated as signed out.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.GetSession(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		isAuth, _ := sess.Values[isAuthKey].(bool)
		id := getString(sess, userIDKey)
		if !isAuth || id == "" {
			next.ServeHTTP(w, r)
			return
		}

		u := &SessionUser{
			ID:    id,
			Name:  getString(sess, userName),
			Email: getString(sess, userEmail),
		}

		if sm.fetcher != nil {
			fresh, err := sm.fetcher.FetchUser(r.Context(), id)
			if err != nil {
				// Transient lookup failure: keep the cached identity.
				sm.logger.Warn("session user fetch failed", zap.Error(err), zap.String("user_id", id))
			} else if fresh == nil {
				next.ServeHTTP(w, r)
				return
			} else {
				u = fresh
			}
		}

		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// Otherwise it answers 401 {message:"Unauthorized"}.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
	})
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
