package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/projectdesk/internal/observability/statsd"
	"github.com/target/projectdesk/internal/ports"
	"github.com/target/projectdesk/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	SessionStore ports.SessionStore // Required
	RateLimiter  *service.RateLimiter
	Gate         *service.AuthGate
	Lifecycle    *service.SessionLifecycle
	Accounts     *service.AccountService
	Projects     *service.ProjectService
	SSO          *service.SSOService // Optional: SSO routes are registered only when set
	LoginGuard   *LoginGuard         // Optional: nil disables the per-IP login guard
	Health       []HealthCheck
	Metrics      statsd.Sink // Optional

	// Configuration
	BaseURL       string // Used to build the SSO callback URL
	CookieName    string
	CookieDomain  string
	SessionMaxAge time.Duration
	BodyLimit     int64
	Compression   *CompressionConfig // Optional: nil disables gzip
	Logger        *slog.Logger
}

const ssoCallbackPath = "/api/auth/sso/callback"

// NewRouter builds the API handler. Every request is bound to a session first;
// routes then pick their admission chain.
func NewRouter(s RouterServices) http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errs := ErrorWriter{Logger: logger}
	admission := AdmissionOptions{Errors: errs, Metrics: s.Metrics}

	// Public auth routes are only rate limited; protected routes also require an identity.
	public := Admit(admission, RateLimitStep(s.RateLimiter))
	protected := Admit(admission, RateLimitStep(s.RateLimiter), RequireIdentityStep(s.Gate))
	guarded := func(h http.Handler) http.Handler { return public(s.LoginGuard.Middleware(h)) }

	mux := http.NewServeMux()

	auth := &AuthHandlers{
		Lifecycle:    s.Lifecycle,
		Accounts:     s.Accounts,
		SSO:          s.SSO,
		CallbackURL:  s.BaseURL + ssoCallbackPath,
		CookieDomain: s.CookieDomain,
		Metrics:      s.Metrics,
		Errors:       errs,
	}
	registerAuthRoutes(mux, auth, authRouteChains{Public: public, Guarded: guarded, Protected: protected})

	account := &AccountHandlers{Svc: s.Accounts, Lifecycle: s.Lifecycle, Errors: errs}
	mux.Handle("GET /api/account", protected(http.HandlerFunc(account.Get)))
	mux.Handle("PUT /api/account", protected(http.HandlerFunc(account.Update)))

	projects := &ProjectHandlers{Svc: s.Projects, Errors: errs}
	registerCRUD(mux, crudRoutes{
		Base:       "/api/projects",
		Create:     projects.Create,
		List:       projects.List,
		GetByID:    projects.GetByID,
		Update:     projects.Update,
		Delete:     projects.Delete,
		Middleware: protected,
	})

	health := &HealthHandler{Checks: s.Health, Logger: logger}
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	mws := []func(http.Handler) http.Handler{
		Recover(logger),
		Logging(logger),
	}
	if s.Compression != nil {
		mws = append(mws, Compression(*s.Compression))
	}
	mws = append(mws,
		BodyLimit(s.BodyLimit),
		Sessions(SessionOptions{
			Store:        s.SessionStore,
			CookieName:   s.CookieName,
			CookieDomain: s.CookieDomain,
			MaxAge:       s.SessionMaxAge,
			Logger:       logger,
		}),
	)
	return Chain(mux, mws...)
}

// authRouteChains groups the admission chains used by auth routes (≤3 params rule).
type authRouteChains struct {
	Public    func(http.Handler) http.Handler
	Guarded   func(http.Handler) http.Handler
	Protected func(http.Handler) http.Handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, c authRouteChains) {
	mux.Handle("POST /api/login", c.Guarded(http.HandlerFunc(h.Login)))
	mux.Handle("POST /api/signup", c.Guarded(http.HandlerFunc(h.Signup)))
	mux.Handle("POST /api/logout", c.Public(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /api/me", c.Protected(http.HandlerFunc(h.Me)))
	if h.SSO != nil {
		mux.Handle("GET /api/auth/sso/login", c.Public(http.HandlerFunc(h.SSOLogin)))
		mux.Handle("GET "+ssoCallbackPath, c.Public(http.HandlerFunc(h.SSOCallback)))
	}
}

// crudRoutes describes the standard CRUD routes for a resource base path.
type crudRoutes struct {
	Base       string
	Create     http.HandlerFunc
	List       http.HandlerFunc
	GetByID    http.HandlerFunc
	Update     http.HandlerFunc
	Delete     http.HandlerFunc
	Middleware func(http.Handler) http.Handler
}

// registerCRUD registers standard CRUD routes for a resource base path, applying Middleware if non-nil.
func registerCRUD(mux *http.ServeMux, cfg crudRoutes) {
	if cfg.Base == "" {
		panic("registerCRUD: Base must not be empty") //nolint:forbidigo // Fail fast during server setup.
	}
	if cfg.Create == nil ||
		cfg.List == nil ||
		cfg.GetByID == nil ||
		cfg.Update == nil ||
		cfg.Delete == nil {
		panic("registerCRUD: nil handler for base " + cfg.Base) //nolint:forbidigo // Fail fast during server setup.
	}

	wrap := func(h http.HandlerFunc) http.Handler {
		if cfg.Middleware != nil {
			return cfg.Middleware(h)
		}
		return h
	}
	mux.Handle("POST "+cfg.Base, wrap(cfg.Create))
	mux.Handle("GET "+cfg.Base, wrap(cfg.List))
	mux.Handle("GET "+cfg.Base+"/{id}", wrap(cfg.GetByID))
	mux.Handle("PUT "+cfg.Base+"/{id}", wrap(cfg.Update))
	mux.Handle("DELETE "+cfg.Base+"/{id}", wrap(cfg.Delete))
}
