package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/projectdesk/internal/data"
	domainauth "github.com/target/projectdesk/internal/domain/auth"
)

// RateLimiterConfig holds the fixed-window parameters.
type RateLimiterConfig struct {
	Enabled     bool
	Window      time.Duration
	MaxRequests int
	// Strict serializes each check per session token within this process.
	Strict bool
}

// RateLimiterOptions groups dependencies for RateLimiter.
type RateLimiterOptions struct {
	Config RateLimiterConfig // Required: window parameters
	Clock  data.TimeProvider // Optional: defaults to wall clock
	Logger *slog.Logger      // Optional: structured logger
}

// RateLimiter bounds the request rate of each session with a fixed-window
// counter kept in the session's own attributes.
//
// By default the read-modify-write is not atomic against the store, so two
// concurrent requests on one session can both be admitted at the ceiling.
// Strict mode removes that overshoot for requests served by one process.
type RateLimiter struct {
	cfg    RateLimiterConfig
	clock  data.TimeProvider
	locks  *keyedMutex
	logger *slog.Logger
}

// NewRateLimiter constructs a RateLimiter.
func NewRateLimiter(opts RateLimiterOptions) (*RateLimiter, error) {
	cfg := opts.Config
	if cfg.Enabled {
		if cfg.Window <= 0 {
			return nil, errors.New("rate limit window must be positive")
		}
		if cfg.MaxRequests <= 0 {
			return nil, errors.New("rate limit max requests must be positive")
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "rate_limiter")
		logger.Debug("RateLimiter initialized",
			"enabled", cfg.Enabled,
			"window", cfg.Window,
			"max_requests", cfg.MaxRequests,
			"strict", cfg.Strict)
	}

	rl := &RateLimiter{cfg: cfg, clock: clock, logger: logger}
	if cfg.Strict {
		rl.locks = newKeyedMutex()
	}
	return rl, nil
}

// MustNewRateLimiter constructs a RateLimiter and panics on error.
func MustNewRateLimiter(opts RateLimiterOptions) *RateLimiter {
	rl, err := NewRateLimiter(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when configuration is invalid during startup
	}
	return rl
}

// Enabled reports whether checks perform any accounting.
func (l *RateLimiter) Enabled() bool { return l.cfg.Enabled }

// Check decides whether the session may issue another request.
// A store failure yields ErrSessionUnavailable; the caller must reject the request.
// Writes already committed are not undone if ctx is cancelled afterwards.
func (l *RateLimiter) Check(ctx context.Context, sess *Session) (domainauth.RateDecision, error) {
	if !l.cfg.Enabled {
		return domainauth.Admit, nil
	}
	if sess == nil {
		return domainauth.RateDecision{}, fmt.Errorf("%w: no session", domainauth.ErrSessionUnavailable)
	}

	if l.locks != nil {
		unlock := l.locks.Lock(sess.Token())
		defer unlock()
	}

	now := l.clock.Now().UTC()
	attrs, err := sess.Get(ctx, domainauth.AttrRateCounter, domainauth.AttrRateWindowStart)
	if err != nil {
		return domainauth.RateDecision{}, fmt.Errorf("%w: read rate state: %v", domainauth.ErrSessionUnavailable, err)
	}
	state, anchored := domainauth.DecodeRateState(attrs, now)

	// Stale windows collapse before the ceiling is consulted.
	if now.Sub(state.WindowStart) > l.cfg.Window {
		return l.write(ctx, sess, map[string]string{
			domainauth.AttrRateCounter:     domainauth.EncodeCounter(1),
			domainauth.AttrRateWindowStart: domainauth.EncodeWindowStart(now),
		}, domainauth.RateDecision{Admitted: true, Counter: 1, ResetAt: now.Add(l.cfg.Window)})
	}

	resetAt := state.WindowStart.Add(l.cfg.Window)
	if state.Counter >= l.cfg.MaxRequests {
		return domainauth.RateDecision{Counter: state.Counter, ResetAt: resetAt}, nil
	}

	next := state.Counter + 1
	update := map[string]string{domainauth.AttrRateCounter: domainauth.EncodeCounter(next)}
	if !anchored {
		update[domainauth.AttrRateWindowStart] = domainauth.EncodeWindowStart(state.WindowStart)
	}
	return l.write(ctx, sess, update, domainauth.RateDecision{Admitted: true, Counter: next, ResetAt: resetAt})
}

func (l *RateLimiter) write(
	ctx context.Context,
	sess *Session,
	attrs map[string]string,
	decision domainauth.RateDecision,
) (domainauth.RateDecision, error) {
	if err := sess.Set(ctx, attrs); err != nil {
		return domainauth.RateDecision{}, fmt.Errorf("%w: write rate state: %v", domainauth.ErrSessionUnavailable, err)
	}
	return decision, nil
}

// RetryAfter returns how long a rejected caller should wait, never less than one second.
func (l *RateLimiter) RetryAfter(d domainauth.RateDecision) time.Duration {
	wait := d.ResetAt.Sub(l.clock.Now())
	if wait < time.Second {
		return time.Second
	}
	return wait.Round(time.Second)
}
