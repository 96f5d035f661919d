package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/ratelimit"
	"golang.org/x/time/rate"
)

func TestLimiter_Allow(t *testing.T) {
	l := ratelimit.New("test", rate.Every(time.Hour), 2, time.Minute, nil)
	defer l.Stop()

	for i, want := range []bool{true, true, false} {
		if got := l.Allow("a"); got != want {
			t.Errorf("Allow(a) call %d = %v, want %v", i+1, got, want)
		}
	}
	if !l.Allow("b") {
		t.Error("Allow(b) = false; keys should be independent")
	}
	if n := l.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}

	l.Stop() // idempotent
}

func TestLimiter_Middleware(t *testing.T) {
	var rejected []string
	l := ratelimit.New("login", rate.Every(time.Hour), 1, time.Minute, nil,
		ratelimit.WithRejectHook(func(name string) { rejected = append(rejected, name) }))
	defer l.Stop()

	h := l.Middleware(ratelimit.ByIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if code := do().Code; code != http.StatusNoContent {
		t.Fatalf("first request status = %d, want %d", code, http.StatusNoContent)
	}
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if !strings.Contains(rec.Body.String(), ratelimit.Message) {
		t.Errorf("body %q missing %q", rec.Body.String(), ratelimit.Message)
	}
	if len(rejected) != 1 || rejected[0] != "login" {
		t.Errorf("reject hook calls = %v, want [login]", rejected)
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request) *http.Request
		key   ratelimit.KeyFunc
		want  string
	}{
		{"remote addr", func(r *http.Request) *http.Request { return r }, ratelimit.ByIP, "ip:192.0.2.1"},
		{"forwarded", func(r *http.Request) *http.Request {
			r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
			return r
		}, ratelimit.ByIP, "ip:203.0.113.9"},
		{"real ip", func(r *http.Request) *http.Request {
			r.Header.Set("X-Real-IP", "198.51.100.7")
			return r
		}, ratelimit.ByIP, "ip:198.51.100.7"},
		{"user", func(r *http.Request) *http.Request {
			return auth.WithTestUser(r, &auth.SessionUser{ID: "abc"})
		}, ratelimit.ByUser, "user:abc"},
		{"anonymous user falls back to ip", func(r *http.Request) *http.Request { return r }, ratelimit.ByUser, "ip:192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil) // RemoteAddr 192.0.2.1:1234
			if got := tt.key(tt.setup(r)); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}
