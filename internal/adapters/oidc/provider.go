// Package oidc implements ports.AuthProvider with the OIDC authorization-code flow.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/ports"
)

const randomValueLen = 32

// ErrEmailNotVerified is returned when the IdP marks the email claim as unverified.
var ErrEmailNotVerified = errors.New("identity provider email is not verified")

// Provider implements ports.AuthProvider using go-oidc and oauth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

var _ ports.AuthProvider = (*Provider)(nil)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// DiscoveryDocument is the subset of the discovery document the provider reads.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider fetches the discovery document and builds the provider.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		httpClient:   httpClient,
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       strings.Fields(config.Scope),
			Endpoint:     op.Endpoint(),
		},
	}, nil
}

// Begin returns the authorization URL with fresh state and nonce values.
// The redirect URI sent to the IdP is always the configured one.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(randomValueLen)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(randomValueLen)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	authURL := p.config.AuthCodeURL(state,
		gooidc.Nonce(nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

// Exchange trades the code for tokens and resolves the principal from the
// ID token, falling back to the userinfo endpoint for missing claims.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
	if in.Code == "" {
		return domainauth.ExternalIdentity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.ExternalIdentity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.ExternalIdentity{}, errors.New("nonce is required")
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.ExternalIdentity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	c, err := p.claimsFromIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.ExternalIdentity{}, fmt.Errorf("extract id_token: %w", err)
	}
	if c.incomplete() {
		ui, uiErr := p.userInfo(ctx, token)
		if uiErr != nil {
			return domainauth.ExternalIdentity{}, fmt.Errorf("get user info: %w", uiErr)
		}
		c.fillFrom(ui)
	}
	if c.EmailVerified != nil && !*c.EmailVerified {
		return domainauth.ExternalIdentity{}, ErrEmailNotVerified
	}
	return c.identity(), nil
}

func (p *Provider) claimsFromIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (claims, error) {
	if !p.hasOpenIDScope() {
		return claims{}, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return claims{}, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return claims{}, fmt.Errorf("verify id_token: %w", err)
	}
	if idTok.Nonce != expectedNonce {
		return claims{}, errors.New("invalid nonce")
	}
	var c claims
	if err := idTok.Claims(&c); err != nil {
		return claims{}, fmt.Errorf("parse id_token claims: %w", err)
	}
	return c, nil
}

func (p *Provider) userInfo(ctx context.Context, tok *oauth2.Token) (claims, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return claims{}, fmt.Errorf("fetch user info: %w", err)
	}
	var c claims
	if err := ui.Claims(&c); err != nil {
		return claims{}, fmt.Errorf("decode user info: %w", err)
	}
	return c, nil
}

// claims covers standard OIDC names plus the AD/ADFS variants some IdPs emit.
type claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`

	Mail      string `json:"mail"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

func (c claims) email() string    { return firstNonEmpty(c.Email, c.Mail) }
func (c claims) given() string    { return firstNonEmpty(c.GivenName, c.FirstName) }
func (c claims) family() string   { return firstNonEmpty(c.FamilyName, c.LastName) }
func (c claims) incomplete() bool { return c.Subject == "" || c.email() == "" }

// fillFrom copies fields that are still empty from other.
func (c *claims) fillFrom(other claims) {
	if c.Subject == "" {
		c.Subject = other.Subject
	}
	if c.email() == "" {
		c.Email = other.email()
		if c.EmailVerified == nil {
			c.EmailVerified = other.EmailVerified
		}
	}
	if c.given() == "" {
		c.GivenName = other.given()
	}
	if c.family() == "" {
		c.FamilyName = other.family()
	}
}

func (c claims) identity() domainauth.ExternalIdentity {
	return domainauth.ExternalIdentity{
		Subject:   c.Subject,
		Email:     c.email(),
		FirstName: c.given(),
		LastName:  c.family(),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString returns a URL-safe random string of exactly length characters.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}

func (p *Provider) hasOpenIDScope() bool {
	return slices.Contains(p.config.Scopes, gooidc.ScopeOpenID)
}

func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
