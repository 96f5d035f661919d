// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Message is the body text of a 429 response.
const Message = "Too many requests. Please try again later."

// KeyFunc picks the bucket a request is counted against. An empty key
// skips limiting.
type KeyFunc func(r *http.Request) string

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter is a per-key token bucket limiter. It is safe for concurrent use.
type Limiter struct {
	name   string
	limit  rate.Limit
	burst  int
	idle   time.Duration
	log    *zap.Logger
	reject func(name string)

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithRejectHook registers fn to be called with the limiter name on each
// rejected request.
func WithRejectHook(fn func(name string)) Option {
	return func(l *Limiter) { l.reject = fn }
}

// PerMinute creates a limiter allowing n requests per minute per key with
// a burst of n. Idle keys are dropped after ten minutes.
func PerMinute(name string, n int, log *zap.Logger, opts ...Option) *Limiter {
	if n < 1 {
		n = 1
	}
	return New(name, rate.Limit(float64(n)/60.0), n, 10*time.Minute, log, opts...)
}

// New creates a limiter and starts its cleanup goroutine. Call Stop to end it.
func New(name string, limit rate.Limit, burst int, idle time.Duration, log *zap.Logger, opts ...Option) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Limiter{
		name:    name,
		limit:   limit,
		burst:   burst,
		idle:    idle,
		log:     log,
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a request for key may proceed.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e, ok := l.entries[key]; ok {
		e.lastAccess = now
		return e.limiter
	}
	e := &entry{limiter: rate.NewLimiter(l.limit, l.burst), lastAccess: now}
	l.entries[key] = e
	return e.limiter
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) cleanupLoop() {
	interval := l.idle / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if now.Sub(e.lastAccess) > l.idle {
			delete(l.entries, k)
		}
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (l *Limiter) Middleware(key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" || l.Allow(k) {
				next.ServeHTTP(w, r)
				return
			}
			l.log.Warn("rate limit exceeded",
				zap.String("limiter", l.name),
				zap.String("key", k))
			if l.reject != nil {
				l.reject(l.name)
			}
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			respond.Message(w, http.StatusTooManyRequests, Message)
		})
	}
}

// retryAfter estimates the seconds until one token is refilled.
func (l *Limiter) retryAfter() int {
	if l.limit <= 0 {
		return 60
	}
	s := int(math.Ceil(1.0 / float64(l.limit)))
	if s < 1 {
		s = 1
	}
	return s
}

// ByIP keys requests by client address.
func ByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ByUser keys requests by the signed-in user, falling back to the client
// address for anonymous requests.
func ByUser(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return "user:" + u.ID
	}
	return ByIP(r)
}

// ClientIP extracts the client IP. chi's RealIP middleware has already
// rewritten RemoteAddr from X-Forwarded-For / X-Real-IP when it runs first;
// the headers are consulted directly otherwise.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
