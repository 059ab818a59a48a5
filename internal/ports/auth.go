package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
)

// SessionStore is a key-value attribute store addressed by an opaque session token.
// Every Get or Set refreshes the session's inactivity expiry.
type SessionStore interface {
	// Get returns the requested attributes. Absent attributes are omitted from the map.
	Get(ctx context.Context, token string, keys ...string) (map[string]string, error)
	// Set upserts the given attributes.
	Set(ctx context.Context, token string, attrs map[string]string) error
	// Clear removes every attribute of the session. Clearing an unknown token is not an error.
	Clear(ctx context.Context, token string) error
}

// PasswordHasher hashes new secrets and verifies secrets against stored hashes.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
}

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying the nonce, and returns the external identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.ExternalIdentity, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}
