// Package metrics exposes Prometheus collectors for membership, provisioning,
// login, rate limiting and HTTP latency.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and handlers report through. Collector is the
// Prometheus implementation; Nop discards everything.
type Recorder interface {
	MembershipOp(op string, err error)
	Provisioning(flow string, err error)
	Login(method string, err error)
	RateLimited(limiter string)
	OwnerViolations(n int)
}

// Outcome labels an error: "ok" for nil, otherwise the apperr kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

// Collector holds the registered Prometheus metrics.
type Collector struct {
	membershipOps   *prometheus.CounterVec
	provisioning    *prometheus.CounterVec
	logins          *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	ownerViolations prometheus.Gauge
	httpDuration    *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		membershipOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamhub_membership_ops_total",
			Help: "Membership operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamhub_provisioning_total",
			Help: "Provisioning workflows by flow and outcome.",
		}, []string{"flow", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamhub_logins_total",
			Help: "Sign-in attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamhub_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
		ownerViolations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teamhub_owner_invariant_violations",
			Help: "Workspaces whose owner membership was inconsistent at the last integrity check.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teamhub_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route pattern and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.membershipOps,
		c.provisioning,
		c.logins,
		c.rateLimited,
		c.ownerViolations,
		c.httpDuration,
	)
	return c
}

func (c *Collector) MembershipOp(op string, err error) {
	c.membershipOps.WithLabelValues(op, Outcome(err)).Inc()
}

func (c *Collector) Provisioning(flow string, err error) {
	c.provisioning.WithLabelValues(flow, Outcome(err)).Inc()
}

func (c *Collector) Login(method string, err error) {
	c.logins.WithLabelValues(method, Outcome(err)).Inc()
}

func (c *Collector) RateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}

func (c *Collector) OwnerViolations(n int) {
	c.ownerViolations.Set(float64(n))
}

// Middleware observes request latency labelled by the chi route pattern,
// so ids in paths do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the gathered metrics for Prometheus scraping.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop is a Recorder that records nothing.
type Nop struct{}

func (Nop) MembershipOp(string, error) {}
func (Nop) Provisioning(string, error) {}
func (Nop) Login(string, error)        {}
func (Nop) RateLimited(string)         {}
func (Nop) OwnerViolations(int)        {}
