package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/projectdesk/config"
	httpx "github.com/target/projectdesk/internal/http"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// BuildHTTPHandler builds the API router from the service container.
func BuildHTTPHandler(cfg *HTTPServerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	svc := cfg.Services

	var compression *httpx.CompressionConfig
	if appCfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", appCfg.HTTP.CompressionLevel)
		compression = &httpx.CompressionConfig{Level: appCfg.HTTP.CompressionLevel}
	}

	return httpx.NewRouter(httpx.RouterServices{
		SessionStore:  svc.SessionStore,
		RateLimiter:   svc.RateLimiter,
		Gate:          svc.Gate,
		Lifecycle:     svc.Lifecycle,
		Accounts:      svc.Accounts,
		Projects:      svc.Projects,
		SSO:           svc.SSO,
		LoginGuard:    svc.LoginGuard,
		Health:        svc.Health,
		Metrics:       svc.Metrics,
		BaseURL:       appCfg.HTTP.BaseURL,
		CookieName:    appCfg.Session.CookieName,
		CookieDomain:  appCfg.HTTP.CookieDomain,
		SessionMaxAge: appCfg.Session.InactivityExpiry,
		BodyLimit:     appCfg.HTTP.BodyLimit,
		Compression:   compression,
		Logger:        logger,
	})
}

// listen binds addr and caps concurrent connections when maxConns > 0.
func listen(addr string, maxConns int) (net.Listener, error) {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

func newServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// ServeHTTP serves handler on ln until ctx is done, then shuts down gracefully.
func ServeHTTP(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	server := newServer(handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(server, logger)
	})
	return g.Wait()
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	// The parent context is already done; give in-flight requests their own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}

// ServiceOrchestrationConfig contains everything needed to run the API until a signal arrives.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown serves HTTP until SIGINT or SIGTERM.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config is incomplete")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := listen(cfg.Config.HTTP.Addr, cfg.Config.HTTP.MaxConnections)
	if err != nil {
		return err
	}

	handler := BuildHTTPHandler(&HTTPServerConfig{Config: cfg.Config, Services: cfg.Services, Logger: logger})
	err = ServeHTTP(ctx, ln, handler, logger)

	if closeErr := cfg.Services.Close(); closeErr != nil {
		logger.Warn("failed to close services", "error", closeErr)
	}
	return err
}
