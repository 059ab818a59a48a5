package config

import (
	"strings"
	"time"
)

const (
	rateLimitEnabledEnv = "RATE_LIMIT_ENABLED"

	// DefaultRateLimitWindow is the length of one fixed rate-limit window.
	DefaultRateLimitWindow = 60 * time.Second
	// DefaultRateLimitMaxRequests is the number of requests admitted per window.
	DefaultRateLimitMaxRequests = 50
	// DefaultSessionInactivityExpiry is how long an untouched session survives.
	DefaultSessionInactivityExpiry = 30 * 24 * time.Hour
)

// RateLimitConfig controls per-session admission control.
type RateLimitConfig struct {
	// Enabled toggles the limiter. Development mode defaults it to false
	// unless RATE_LIMIT_ENABLED is set explicitly.
	Enabled bool `env:"ENABLED" envDefault:"true"`

	// Window is the fixed window length.
	Window time.Duration `env:"WINDOW" envDefault:"60s"`

	// MaxRequests is the ceiling of admitted requests per window.
	MaxRequests int `env:"MAX_REQUESTS" envDefault:"50"`

	// Strict serializes each check per session token inside this process.
	// When false, concurrent requests on one session may overshoot the ceiling slightly.
	Strict bool `env:"STRICT" envDefault:"false"`
}

// Sanitize applies guardrails to rate limit configuration values.
func (c *RateLimitConfig) Sanitize() {
	if c.Window <= 0 {
		c.Window = DefaultRateLimitWindow
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultRateLimitMaxRequests
	}
}

// SessionConfig controls the server-side session store and its cookie.
type SessionConfig struct {
	// InactivityExpiry is refreshed on every read or write of a session.
	InactivityExpiry time.Duration `env:"INACTIVITY_EXPIRY" envDefault:"720h"`

	// KeyPrefix namespaces session hashes in Redis.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"projectdesk:session:"`

	// CookieName is the name of the cookie carrying the session token.
	CookieName string `env:"COOKIE_NAME" envDefault:"session_id"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	if c.InactivityExpiry <= 0 {
		c.InactivityExpiry = DefaultSessionInactivityExpiry
	}
	c.KeyPrefix = strings.TrimSpace(c.KeyPrefix)
	if c.CookieName = strings.TrimSpace(c.CookieName); c.CookieName == "" {
		c.CookieName = "session_id"
	}
}
