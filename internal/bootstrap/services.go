package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/projectdesk/config"
	redisadapter "github.com/target/projectdesk/internal/adapters/redis"
	"github.com/target/projectdesk/internal/data"
	httpx "github.com/target/projectdesk/internal/http"
	"github.com/target/projectdesk/internal/observability/statsd"
	"github.com/target/projectdesk/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	SessionStore *redisadapter.SessionStore
	RateLimiter  *service.RateLimiter
	Gate         *service.AuthGate
	Lifecycle    *service.SessionLifecycle
	Accounts     *service.AccountService
	Projects     *service.ProjectService
	SSO          *service.SSOService // nil when single sign-on is not configured
	LoginGuard   *httpx.LoginGuard   // nil when disabled
	Health       []httpx.HealthCheck
	Metrics      statsd.Sink
	metricsClose func() error
}

// Close releases resources owned by the container. It does not close DB or Redis.
func (c *ServiceContainer) Close() error {
	if c == nil || c.metricsClose == nil {
		return nil
	}
	return c.metricsClose()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires repositories, adapters and domain services.
func NewServices(ctx context.Context, deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service deps with config are required")
	}
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	auth, err := BuildAuthAdapters(ctx, AuthConfig{
		Auth:        cfg.Auth,
		Session:     cfg.Session,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	accounts := data.NewAccountRepo(deps.DB)
	c := &ServiceContainer{
		SessionStore: auth.Sessions,
		Gate:         service.NewAuthGate(logger),
		LoginGuard: httpx.NewLoginGuard(httpx.LoginGuardOptions{
			AttemptsPerMinute: cfg.Auth.LoginGuard.AttemptsPerMinute,
			Burst:             cfg.Auth.LoginGuard.Burst,
			TrustForwardedFor: cfg.Auth.LoginGuard.TrustForwardedFor,
		}),
	}

	if c.RateLimiter, err = service.NewRateLimiter(service.RateLimiterOptions{
		Config: service.RateLimiterConfig{
			Enabled:     cfg.RateLimit.Enabled,
			Window:      cfg.RateLimit.Window,
			MaxRequests: cfg.RateLimit.MaxRequests,
			Strict:      cfg.RateLimit.Strict,
		},
		Logger: logger,
	}); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if c.Lifecycle, err = service.NewSessionLifecycle(service.SessionLifecycleOptions{
		Accounts: accounts,
		Hasher:   auth.Hasher,
		Logger:   logger,
	}); err != nil {
		return nil, fmt.Errorf("session lifecycle: %w", err)
	}

	if c.Accounts, err = service.NewAccountService(service.AccountServiceOptions{
		Repo:   accounts,
		Hasher: auth.Hasher,
		Logger: logger,
	}); err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}

	if c.Projects, err = service.NewProjectService(service.ProjectServiceOptions{
		Repo:   data.NewProjectRepo(deps.DB),
		Logger: logger,
	}); err != nil {
		return nil, fmt.Errorf("project service: %w", err)
	}

	if auth.Provider != nil {
		if c.SSO, err = service.NewSSOService(service.SSOServiceOptions{
			Provider:  auth.Provider,
			Lifecycle: c.Lifecycle,
			Logger:    logger,
		}); err != nil {
			return nil, fmt.Errorf("sso service: %w", err)
		}
	}

	c.Metrics, c.metricsClose = buildMetricsSink(ctx, cfg.Observability.Metrics, logger)
	c.Health = buildHealthChecks(deps.DB, auth.Sessions)

	logger.InfoContext(ctx, "services initialized",
		"auth_mode", cfg.Auth.Mode,
		"sso_enabled", c.SSO != nil,
		"rate_limit_enabled", c.RateLimiter.Enabled(),
		"login_guard_enabled", c.LoginGuard != nil,
	)
	return c, nil
}

// buildMetricsSink dials statsd when enabled. Failure to dial is logged and metrics are dropped.
func buildMetricsSink(ctx context.Context, cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (statsd.Sink, func() error) {
	if !cfg.IsEnabled() {
		return statsd.Discard, nil
	}
	client, err := statsd.Dial(ctx, statsd.Config{
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to initialise statsd client", "error", err)
		return statsd.Discard, nil
	}
	return client, client.Close
}

func buildHealthChecks(db *sql.DB, sessions *redisadapter.SessionStore) []httpx.HealthCheck {
	return []httpx.HealthCheck{
		{Name: "postgres", Pinger: httpx.PingFunc(db.PingContext)},
		{Name: "session_store", Pinger: sessions},
	}
}
