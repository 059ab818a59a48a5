package httpx

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginGuardOptions configures LoginGuard.
type LoginGuardOptions struct {
	// AttemptsPerMinute is the sustained rate per client. Zero disables the guard.
	AttemptsPerMinute int
	Burst             int
	TrustForwardedFor bool
	// IdleTTL evicts buckets of clients not seen for this long. Defaults to 15 minutes.
	IdleTTL time.Duration
	Now     func() time.Time
}

// LoginGuard throttles credential-bearing endpoints per client address with a token bucket.
// It complements the per-session limiter, which a client can reset by dropping its cookie.
type LoginGuard struct {
	limit     rate.Limit
	burst     int
	trustXFF  bool
	idleTTL   time.Duration
	now       func() time.Time
	mu        sync.Mutex
	buckets   map[string]*guardBucket
	lastSweep time.Time
}

type guardBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLoginGuard returns a guard, or nil when the guard is disabled.
func NewLoginGuard(opts LoginGuardOptions) *LoginGuard {
	if opts.AttemptsPerMinute <= 0 {
		return nil
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LoginGuard{
		limit:    rate.Limit(float64(opts.AttemptsPerMinute) / 60),
		burst:    opts.Burst,
		trustXFF: opts.TrustForwardedFor,
		idleTTL:  opts.IdleTTL,
		now:      opts.Now,
		buckets:  make(map[string]*guardBucket),
	}
}

// Allow reports whether the client may attempt another login, and if not, how long to wait.
func (g *LoginGuard) Allow(key string) (bool, time.Duration) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweepLocked(now)
	b, ok := g.buckets[key]
	if !ok {
		b = &guardBucket{lim: rate.NewLimiter(g.limit, g.burst)}
		g.buckets[key] = b
	}
	b.lastSeen = now

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (g *LoginGuard) sweepLocked(now time.Time) {
	if now.Sub(g.lastSweep) < g.idleTTL/4 {
		return
	}
	g.lastSweep = now
	cutoff := now.Add(-g.idleTTL)
	for k, b := range g.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(g.buckets, k)
		}
	}
}

func (g *LoginGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}

// errTooManyAttempts is rendered with code too_many_login_attempts.
var errTooManyAttempts = errors.New("too many login attempts, try again later")

// Middleware rejects requests from clients that exhausted their bucket. A nil guard passes everything.
func (g *LoginGuard) Middleware(next http.Handler) http.Handler {
	if g == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := g.Allow(clientIP(r, g.trustXFF))
		if !ok {
			w.Header().Set("Retry-After", retryAfterSeconds(wait))
			WriteError(w, ErrorParams{
				Code:    http.StatusTooManyRequests,
				ErrCode: "too_many_login_attempts",
				Err:     errTooManyAttempts,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the caller address used as the guard key.
func clientIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
