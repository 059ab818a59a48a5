package config

import (
	"fmt"
	"strings"
)

const minPasswordMemoryKB = 8 * 1024

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeLocal authenticates with email and password only.
	AuthModeLocal AuthMode = "local"
	// AuthModeOIDC additionally enables single sign-on through an OIDC provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev enables single sign-on against a built-in provider for local development.
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "local", "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: local, oidc, dev)", v)
	}
}

// OIDCConfig contains OAuth/OIDC configuration for single sign-on.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/api/auth/sso/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// DevAuthConfig is the identity returned by the development SSO provider.
type DevAuthConfig struct {
	Email     string `env:"EMAIL"      envDefault:"developer@example.com"`
	FirstName string `env:"FIRST_NAME" envDefault:"Dev"`
	LastName  string `env:"LAST_NAME"  envDefault:"User"`
}

// LoginGuardConfig throttles credential-bearing endpoints per client address.
type LoginGuardConfig struct {
	AttemptsPerMinute int `env:"ATTEMPTS_PER_MINUTE" envDefault:"10"`
	Burst             int `env:"BURST"               envDefault:"5"`
	// TrustForwardedFor keys clients by the first X-Forwarded-For hop. Enable only behind a proxy.
	TrustForwardedFor bool `env:"TRUST_FORWARDED_FOR" envDefault:"false"`
}

// PasswordConfig tunes argon2id cost for newly hashed passwords.
type PasswordConfig struct {
	MemoryKB    uint32 `env:"MEMORY_KB"   envDefault:"65536"`
	Iterations  uint32 `env:"ITERATIONS"  envDefault:"3"`
	Parallelism uint8  `env:"PARALLELISM" envDefault:"2"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines whether SSO routes are mounted.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"local"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// Dev SSO identity (used when Mode=dev).
	Dev DevAuthConfig `envPrefix:"AUTH_DEV_"`

	// LoginGuard configuration for /api/login and /api/signup.
	LoginGuard LoginGuardConfig `envPrefix:"AUTH_LOGIN_"`

	// Password hashing cost.
	Password PasswordConfig `envPrefix:"AUTH_PASSWORD_"`
}

// Sanitize applies guardrails to authentication configuration values.
func (c *AuthConfig) Sanitize() {
	c.OIDC.ClientID = strings.TrimSpace(c.OIDC.ClientID)
	c.OIDC.DiscoveryURL = strings.TrimSpace(c.OIDC.DiscoveryURL)
	c.Dev.Email = strings.TrimSpace(c.Dev.Email)
	if c.LoginGuard.AttemptsPerMinute < 0 {
		c.LoginGuard.AttemptsPerMinute = 0
	}
	if c.LoginGuard.Burst < 1 {
		c.LoginGuard.Burst = 1
	}
	if c.Password.MemoryKB < minPasswordMemoryKB {
		c.Password.MemoryKB = minPasswordMemoryKB
	}
	if c.Password.Iterations < 1 {
		c.Password.Iterations = 1
	}
	if c.Password.Parallelism < 1 {
		c.Password.Parallelism = 1
	}
}

// SSOEnabled reports whether single sign-on routes should be registered.
func (c *AuthConfig) SSOEnabled() bool {
	switch c.Mode {
	case AuthModeOIDC:
		return c.OIDC.ClientID != "" && c.OIDC.DiscoveryURL != ""
	case AuthModeDev:
		return c.Dev.Email != ""
	default:
		return false
	}
}
