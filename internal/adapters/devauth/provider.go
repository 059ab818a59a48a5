// Package devauth provides a config-driven AuthProvider for local development.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/ports"
)

// Code is the authorization code the provider hands back to the callback.
const Code = "dev"

// Config controls the dev auth provider behavior.
type Config struct {
	Email     string
	FirstName string
	LastName  string
}

// Provider implements ports.AuthProvider for local development.
// Begin redirects straight back to the callback with a locally generated state;
// Exchange ignores everything but the code and returns the configured identity.
type Provider struct {
	identity domainauth.ExternalIdentity
}

var _ ports.AuthProvider = (*Provider)(nil)

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	return &Provider{identity: domainauth.ExternalIdentity{
		Subject:   "dev:" + cfg.Email,
		Email:     cfg.Email,
		FirstName: cfg.FirstName,
		LastName:  cfg.LastName,
	}}, nil
}

// Begin returns the callback URL with code and state already filled in.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	u, err := url.Parse(in.RedirectURL)
	if err != nil {
		return "", "", "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	q.Set("code", Code)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), state, nonce, nil
}

// Exchange returns the configured identity when code matches.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
	if in.Code != Code {
		return domainauth.ExternalIdentity{}, errors.New("dev auth: unexpected authorization code")
	}
	return p.identity, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
