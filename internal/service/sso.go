package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/ports"
)

var (
	// ErrInvalidSSOState means the callback state does not match the one issued to this session.
	ErrInvalidSSOState = errors.New("invalid or expired login state")
	// ErrSSOIdentityIncomplete means the IdP did not return a usable email.
	ErrSSOIdentityIncomplete = errors.New("identity provider returned no usable email")
)

// SSOServiceOptions groups dependencies for SSOService.
type SSOServiceOptions struct {
	Provider  ports.AuthProvider // Required: IdP adapter
	Lifecycle *SessionLifecycle  // Required: establishes the identity
	Logger    *slog.Logger       // Optional: structured logger
}

// SSOService runs the authorization-code flow, keeping state and nonce in the session.
type SSOService struct {
	provider  ports.AuthProvider
	lifecycle *SessionLifecycle
	logger    *slog.Logger
}

// NewSSOService constructs an SSOService.
func NewSSOService(opts SSOServiceOptions) (*SSOService, error) {
	if opts.Provider == nil {
		return nil, errors.New("auth provider is required")
	}
	if opts.Lifecycle == nil {
		return nil, errors.New("session lifecycle is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "sso")
		logger.Debug("SSOService initialized")
	}
	return &SSOService{provider: opts.Provider, lifecycle: opts.Lifecycle, logger: logger}, nil
}

// Begin starts a login and returns the IdP URL to redirect to.
func (s *SSOService) Begin(ctx context.Context, sess *Session, redirectURL string) (string, error) {
	if redirectURL == "" {
		return "", errors.New("redirect URL is required")
	}
	if sess == nil {
		return "", fmt.Errorf("%w: no session", domainauth.ErrSessionUnavailable)
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return "", fmt.Errorf("begin auth flow: %w", err)
	}
	if err := sess.Set(ctx, map[string]string{
		domainauth.AttrSSOState: state,
		domainauth.AttrSSONonce: nonce,
	}); err != nil {
		return "", fmt.Errorf("%w: store login state: %v", domainauth.ErrSessionUnavailable, err)
	}
	return authURL, nil
}

// CompleteInput carries the callback parameters.
type CompleteInput struct {
	Code  string
	State string
}

// Complete validates the callback against the session, exchanges the code and logs the session in.
// The pending state is consumed whether or not the exchange succeeds.
func (s *SSOService) Complete(ctx context.Context, sess *Session, in CompleteInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}
	if sess == nil {
		return domainauth.Identity{}, fmt.Errorf("%w: no session", domainauth.ErrSessionUnavailable)
	}

	attrs, err := sess.Get(ctx, domainauth.AttrSSOState, domainauth.AttrSSONonce)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: read login state: %v", domainauth.ErrSessionUnavailable, err)
	}
	state, nonce := attrs[domainauth.AttrSSOState], attrs[domainauth.AttrSSONonce]
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(in.State)) != 1 {
		return domainauth.Identity{}, ErrInvalidSSOState
	}

	if err := sess.Set(ctx, map[string]string{
		domainauth.AttrSSOState: "",
		domainauth.AttrSSONonce: "",
	}); err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: consume login state: %v", domainauth.ErrSessionUnavailable, err)
	}

	ext, err := s.provider.Exchange(ctx, ports.ExchangeInput{Code: in.Code, State: state, Nonce: nonce})
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	id, err := s.lifecycle.LoginExternal(ctx, sess, ext)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "sso login completed", "subject", ext.Subject)
	}
	return id, nil
}
