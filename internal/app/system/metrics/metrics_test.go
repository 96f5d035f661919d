package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{apperr.Forbidden("no"), apperr.KindForbidden.String()},
		{apperr.Conflict("dup"), apperr.KindConflict.String()},
		{errors.New("boom"), apperr.KindInternal.String()},
	}
	for _, tt := range tests {
		if got := metrics.Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCollector_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.MembershipOp("join", nil)
	c.MembershipOp("join", apperr.Conflict("User is already a member of this workspace"))
	c.Provisioning("register", nil)
	c.Login("email", apperr.Unauthorized("Invalid credentials"))
	c.RateLimited("login")
	c.OwnerViolations(2)

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/member/{memberId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/member/abc", nil))

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`teamhub_membership_ops_total{op="join",outcome="ok"} 1`,
		`teamhub_membership_ops_total{op="join",outcome="` + apperr.KindConflict.String() + `"} 1`,
		`teamhub_provisioning_total{flow="register",outcome="ok"} 1`,
		`teamhub_rate_limited_total{limiter="login"} 1`,
		`teamhub_owner_invariant_violations 2`,
		`route="/member/{memberId}"`,
		`status="418"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r metrics.Recorder = metrics.Nop{}
	r.MembershipOp("x", nil)
	r.OwnerViolations(0)
}
