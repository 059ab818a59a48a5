package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/projectdesk/config"
	"github.com/target/projectdesk/internal/adapters/devauth"
	"github.com/target/projectdesk/internal/adapters/oidc"
	"github.com/target/projectdesk/internal/adapters/password"
	redisadapter "github.com/target/projectdesk/internal/adapters/redis"
	"github.com/target/projectdesk/internal/ports"
)

// AuthConfig contains configuration for the auth adapters.
type AuthConfig struct {
	Auth        config.AuthConfig
	Session     config.SessionConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// AuthAdapters are the infrastructure pieces behind admission and login.
type AuthAdapters struct {
	Sessions *redisadapter.SessionStore
	Hasher   *password.Hasher
	// Provider is nil when single sign-on is not configured.
	Provider ports.AuthProvider
}

// BuildAuthAdapters creates the session store, the password hasher and, depending on
// the configured auth mode, the SSO provider.
func BuildAuthAdapters(ctx context.Context, cfg AuthConfig) (AuthAdapters, error) {
	if cfg.RedisClient == nil {
		return AuthAdapters{}, errors.New("redis client is required for the session store")
	}

	sessions, err := redisadapter.NewSessionStore(cfg.RedisClient, redisadapter.SessionStoreOptions{
		Prefix: cfg.Session.KeyPrefix,
		TTL:    cfg.Session.InactivityExpiry,
	})
	if err != nil {
		return AuthAdapters{}, fmt.Errorf("session store: %w", err)
	}

	hasher, err := NewPasswordHasher(cfg.Auth.Password)
	if err != nil {
		return AuthAdapters{}, err
	}

	return AuthAdapters{
		Sessions: sessions,
		Hasher:   hasher,
		Provider: buildSSOProvider(ctx, cfg),
	}, nil
}

// NewPasswordHasher builds the argon2id hasher with the configured cost.
func NewPasswordHasher(cfg config.PasswordConfig) (*password.Hasher, error) {
	hasher, err := password.NewHasher(password.Params{
		MemoryKB:    cfg.MemoryKB,
		Iterations:  cfg.Iterations,
		Parallelism: cfg.Parallelism,
	})
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	return hasher, nil
}

// buildSSOProvider returns nil when SSO is off or cannot be configured; local login keeps working.
//
//nolint:ireturn // the provider implementation depends on the auth mode.
func buildSSOProvider(ctx context.Context, cfg AuthConfig) ports.AuthProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		prov, err := devauth.NewProvider(devauth.Config{
			Email:     cfg.Auth.Dev.Email,
			FirstName: cfg.Auth.Dev.FirstName,
			LastName:  cfg.Auth.Dev.LastName,
		})
		if err != nil {
			logger.WarnContext(ctx, "failed to create dev auth provider, SSO disabled", "error", err)
			return nil
		}
		logger.WarnContext(ctx, "dev SSO provider enabled; do not use in production", "email", cfg.Auth.Dev.Email)
		return prov

	case config.AuthModeOIDC:
		return buildOIDCProvider(ctx, cfg.Auth.OIDC, logger)

	default:
		return nil
	}
}

//nolint:ireturn // see buildSSOProvider.
func buildOIDCProvider(ctx context.Context, o config.OIDCConfig, logger *slog.Logger) ports.AuthProvider {
	// Only enable when fully configured
	if o.DiscoveryURL == "" || o.ClientID == "" || o.ClientSecret == "" {
		logger.WarnContext(ctx, "AUTH_MODE=oidc selected but required config missing; SSO disabled",
			"discovery_url_empty", o.DiscoveryURL == "",
			"client_id_empty", o.ClientID == "",
			"client_secret_empty", o.ClientSecret == "",
		)
		return nil
	}

	prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  o.RedirectURL,
		Scope:        o.Scope,
		DiscoveryURL: o.DiscoveryURL,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to create OIDC provider, SSO disabled", "error", err)
		return nil
	}
	return prov
}
