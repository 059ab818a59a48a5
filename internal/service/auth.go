package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/projectdesk/internal/core"
	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/domain/model"
	"github.com/target/projectdesk/internal/ports"
)

// timingGuardSecret is hashed once at startup so failed lookups still pay for a verify.
const timingGuardSecret = "projectdesk-timing-guard"

// AuthGate resolves the principal of a session.
type AuthGate struct {
	logger *slog.Logger
}

// NewAuthGate constructs an AuthGate. logger may be nil.
func NewAuthGate(logger *slog.Logger) *AuthGate {
	g := &AuthGate{}
	if logger != nil {
		g.logger = logger.With("component", "auth_gate")
	}
	return g
}

// RequireIdentity returns the session's identity or ErrUnauthenticated.
// It never writes to the session.
func (g *AuthGate) RequireIdentity(ctx context.Context, sess *Session) (domainauth.Identity, error) {
	if sess == nil {
		return domainauth.Identity{}, domainauth.ErrUnauthenticated
	}
	attrs, err := sess.Get(ctx, domainauth.AttrIdentity)
	if err != nil {
		if g.logger != nil {
			g.logger.DebugContext(ctx, "identity read failed", "error", err)
		}
		return domainauth.Identity{}, fmt.Errorf("%w: %v", domainauth.ErrUnauthenticated, err)
	}
	id := domainauth.Identity{Email: attrs[domainauth.AttrIdentity]}
	if id.IsZero() {
		return domainauth.Identity{}, domainauth.ErrUnauthenticated
	}
	return id, nil
}

// SessionLifecycleOptions groups dependencies for SessionLifecycle.
type SessionLifecycleOptions struct {
	Accounts core.AccountRepository // Required: credential lookup
	Hasher   ports.PasswordHasher   // Required: secret verification
	Logger   *slog.Logger           // Optional: structured logger
}

// SessionLifecycle moves a session between the anonymous and authenticated states.
type SessionLifecycle struct {
	accounts  core.AccountRepository
	hasher    ports.PasswordHasher
	gate      *AuthGate
	dummyHash string
	logger    *slog.Logger
}

// NewSessionLifecycle constructs a SessionLifecycle.
func NewSessionLifecycle(opts SessionLifecycleOptions) (*SessionLifecycle, error) {
	if opts.Accounts == nil {
		return nil, errors.New("account repository is required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("password hasher is required")
	}

	// A failed dummy hash only weakens timing uniformity; login still works.
	dummy, _ := opts.Hasher.Hash(timingGuardSecret) //nolint:errcheck // best effort

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "session_lifecycle")
		logger.Debug("SessionLifecycle initialized")
	}

	return &SessionLifecycle{
		accounts:  opts.Accounts,
		hasher:    opts.Hasher,
		gate:      NewAuthGate(opts.Logger),
		dummyHash: dummy,
		logger:    logger,
	}, nil
}

// MustNewSessionLifecycle constructs a SessionLifecycle and panics on error.
func MustNewSessionLifecycle(opts SessionLifecycleOptions) *SessionLifecycle {
	l, err := NewSessionLifecycle(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are missing during startup
	}
	return l
}

// Login verifies email and secret and marks the session authenticated under a new token.
// Every credential failure, whatever the cause, is ErrIncorrectCredentials.
// An existing identity on the session is overwritten.
func (l *SessionLifecycle) Login(ctx context.Context, sess *Session, email, secret string) (domainauth.Identity, error) {
	email = model.NormalizeEmail(email)

	acct, err := l.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, model.ErrAccountNotFound) {
			l.debug(ctx, "account lookup failed", "error", err)
		}
		l.burnVerify(secret)
		return domainauth.Identity{}, domainauth.ErrIncorrectCredentials
	}
	if !acct.HasPassword() {
		l.burnVerify(secret)
		return domainauth.Identity{}, domainauth.ErrIncorrectCredentials
	}

	ok, err := l.hasher.Verify(secret, *acct.PasswordHash)
	if err != nil {
		l.debug(ctx, "stored hash rejected", "error", err)
		return domainauth.Identity{}, domainauth.ErrIncorrectCredentials
	}
	if !ok {
		return domainauth.Identity{}, domainauth.ErrIncorrectCredentials
	}

	l.upgradeHash(ctx, acct, secret)
	return l.establish(ctx, sess, acct.Email)
}

// rehasher is implemented by hashers that can tell when a stored hash is outdated.
type rehasher interface {
	NeedsRehash(encoded string) bool
}

// upgradeHash replaces a legacy or weaker hash after a successful verify. Failures are logged only.
func (l *SessionLifecycle) upgradeHash(ctx context.Context, acct *model.Account, secret string) {
	rh, ok := l.hasher.(rehasher)
	if !ok || !rh.NeedsRehash(*acct.PasswordHash) {
		return
	}
	hash, err := l.hasher.Hash(secret)
	if err == nil {
		_, err = l.accounts.Update(ctx, acct.Email, model.AccountUpdate{PasswordHash: &hash})
	}
	if err != nil && l.logger != nil {
		l.logger.WarnContext(ctx, "password rehash failed", "account_id", acct.ID, "error", err)
	}
}

// LoginExternal marks the session authenticated for a principal vouched for by an IdP,
// provisioning an account on first sight.
func (l *SessionLifecycle) LoginExternal(
	ctx context.Context,
	sess *Session,
	ext domainauth.ExternalIdentity,
) (domainauth.Identity, error) {
	email := model.NormalizeEmail(ext.Email)
	if err := model.ValidateEmail(email); err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: %v", ErrSSOIdentityIncomplete, err)
	}

	if _, err := l.accounts.GetByEmail(ctx, email); err != nil {
		if !errors.Is(err, model.ErrAccountNotFound) {
			return domainauth.Identity{}, fmt.Errorf("lookup account: %w", err)
		}
		if err := l.provision(ctx, email, ext); err != nil {
			return domainauth.Identity{}, err
		}
	}
	return l.establish(ctx, sess, email)
}

func (l *SessionLifecycle) provision(ctx context.Context, email string, ext domainauth.ExternalIdentity) error {
	req := model.CreateAccountRequest{Email: email, Provider: model.ProviderOIDC}
	if name := ext.DisplayName(); name != "" {
		req.Name = &name
	}
	_, err := l.accounts.Create(ctx, req)
	if err != nil && !errors.Is(err, model.ErrAccountExists) {
		return fmt.Errorf("provision account: %w", err)
	}
	if err == nil && l.logger != nil {
		l.logger.InfoContext(ctx, "provisioned account from identity provider", "subject", ext.Subject)
	}
	return nil
}

func (l *SessionLifecycle) establish(ctx context.Context, sess *Session, email string) (domainauth.Identity, error) {
	if sess == nil {
		return domainauth.Identity{}, fmt.Errorf("%w: no session", domainauth.ErrSessionUnavailable)
	}
	// A fresh token on every login defeats fixation; the rate window follows the client.
	err := sess.Rotate(ctx,
		map[string]string{domainauth.AttrIdentity: email},
		domainauth.AttrRateCounter, domainauth.AttrRateWindowStart,
	)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: rotate session: %v", domainauth.ErrSessionUnavailable, err)
	}
	return domainauth.Identity{Email: email}, nil
}

// Logout removes every attribute of the session, including rate state. It is idempotent.
func (l *SessionLifecycle) Logout(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if err := sess.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clear session: %v", domainauth.ErrSessionUnavailable, err)
	}
	return nil
}

// WhoAmI reports the session's identity; it behaves exactly like AuthGate.RequireIdentity.
func (l *SessionLifecycle) WhoAmI(ctx context.Context, sess *Session) (domainauth.Identity, error) {
	return l.gate.RequireIdentity(ctx, sess)
}

// VerifyPassword checks secret against the stored hash of acct.
func (l *SessionLifecycle) VerifyPassword(acct *model.Account, secret string) bool {
	if acct == nil || !acct.HasPassword() {
		l.burnVerify(secret)
		return false
	}
	ok, err := l.hasher.Verify(secret, *acct.PasswordHash)
	return err == nil && ok
}

func (l *SessionLifecycle) burnVerify(secret string) {
	if l.dummyHash == "" {
		return
	}
	_, _ = l.hasher.Verify(secret, l.dummyHash) //nolint:errcheck // result intentionally discarded
}

func (l *SessionLifecycle) debug(ctx context.Context, msg string, args ...any) {
	if l.logger != nil {
		l.logger.DebugContext(ctx, msg, args...)
	}
}
