package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/projectdesk/internal/ports"
	"golang.org/x/oauth2"
)

// fakeIdP serves discovery, token and userinfo endpoints on one httptest server.
type fakeIdP struct {
	server   *httptest.Server
	userInfo map[string]any
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	idp := &fakeIdP{userInfo: map[string]any{
		"sub":         "sub-123",
		"email":       "grace@example.com",
		"given_name":  "Grace",
		"family_name": "Hopper",
	}}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, DiscoveryDocument{
			Issuer:                idp.server.URL,
			AuthorizationEndpoint: idp.server.URL + "/auth",
			TokenEndpoint:         idp.server.URL + "/token",
			UserinfoEndpoint:      idp.server.URL + "/userinfo",
			JwksURI:               idp.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		writeJSON(w, map[string]any{"access_token": "at-1", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, idp.userInfo)
	})
	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// newTestProvider omits the openid scope so identity comes from userinfo only.
func newTestProvider(t *testing.T, idp *fakeIdP, scope string) *Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), ProviderConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/api/auth/sso/callback",
		Scope:        scope,
		DiscoveryURL: idp.server.URL + "/.well-known/openid-configuration",
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_DiscoversEndpoints(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "openid profile email")

	assert.Equal(t, idp.server.URL+"/auth", p.config.Endpoint.AuthURL)
	assert.Equal(t, idp.server.URL+"/token", p.config.Endpoint.TokenURL)
	assert.True(t, p.hasOpenIDScope())
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	base := ProviderConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/callback",
		DiscoveryURL: "http://example.invalid",
	}
	tests := []struct {
		name   string
		mutate func(*ProviderConfig)
		errMsg string
	}{
		{name: "client ID", mutate: func(c *ProviderConfig) { c.ClientID = "" }, errMsg: "client ID is required"},
		{name: "client secret", mutate: func(c *ProviderConfig) { c.ClientSecret = "" }, errMsg: "client secret is required"},
		{name: "redirect URL", mutate: func(c *ProviderConfig) { c.RedirectURL = "" }, errMsg: "redirect URL is required"},
		{name: "discovery URL", mutate: func(c *ProviderConfig) { c.DiscoveryURL = "" }, errMsg: "discovery URL is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := NewProvider(context.Background(), cfg)
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	p := newTestProvider(t, newFakeIdP(t), "openid email")

	authURL, state, nonce, err := p.Begin(context.Background(), ports.BeginInput{RedirectURL: "http://localhost/cb"})
	require.NoError(t, err)
	assert.Len(t, state, randomValueLen)
	assert.Len(t, nonce, randomValueLen)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, nonce, q.Get("nonce"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://localhost:8080/api/auth/sso/callback", q.Get("redirect_uri"))

	_, _, _, err = p.Begin(context.Background(), ports.BeginInput{})
	require.ErrorContains(t, err, "redirect URL is required")
}

func TestProvider_ExchangeViaUserInfo(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "profile email")

	id, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "n"})

	require.NoError(t, err)
	assert.Equal(t, "sub-123", id.Subject)
	assert.Equal(t, "grace@example.com", id.Email)
	assert.Equal(t, "Grace Hopper", id.DisplayName())
}

func TestProvider_ExchangeADShapedUserInfo(t *testing.T) {
	idp := newFakeIdP(t)
	idp.userInfo = map[string]any{"sub": "sub-9", "mail": "ad.user@corp.example", "firstname": "Ad", "lastname": "User"}
	p := newTestProvider(t, idp, "profile")

	id, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "n"})

	require.NoError(t, err)
	assert.Equal(t, "ad.user@corp.example", id.Email)
	assert.Equal(t, "Ad", id.FirstName)
}

func TestProvider_ExchangeRejectsUnverifiedEmail(t *testing.T) {
	idp := newFakeIdP(t)
	idp.userInfo["email_verified"] = false
	p := newTestProvider(t, idp, "email")

	_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "n"})

	require.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestProvider_ExchangeErrors(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "email")
	ctx := context.Background()

	tests := []struct {
		name   string
		input  ports.ExchangeInput
		errMsg string
	}{
		{name: "missing code", input: ports.ExchangeInput{State: "s", Nonce: "n"}, errMsg: "authorization code is required"},
		{name: "missing state", input: ports.ExchangeInput{Code: "c", Nonce: "n"}, errMsg: "state is required"},
		{name: "missing nonce", input: ports.ExchangeInput{Code: "c", State: "s"}, errMsg: "nonce is required"},
		{name: "rejected code", input: ports.ExchangeInput{Code: "bad", State: "s", Nonce: "n"}, errMsg: "exchange code for token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Exchange(ctx, tt.input)
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestProvider_ExchangeRequiresIDTokenWithOpenIDScope(t *testing.T) {
	p := newTestProvider(t, newFakeIdP(t), "openid email")

	_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "n"})

	require.ErrorContains(t, err, "missing id_token")
}

func TestClaims_FillFrom(t *testing.T) {
	verified := true
	c := claims{Subject: "keep", FirstName: "Kept"}
	c.fillFrom(claims{Subject: "other", Mail: "m@example.com", EmailVerified: &verified, GivenName: "Other", LastName: "Last"})

	assert.Equal(t, "keep", c.Subject)
	assert.Equal(t, "m@example.com", c.email())
	assert.Equal(t, "Kept", c.given())
	assert.Equal(t, "Last", c.family())
	require.NotNil(t, c.EmailVerified)
	assert.False(t, c.incomplete())
}

func TestGenerateRandomString(t *testing.T) {
	for _, n := range []int{1, 16, 31, 32, 33} {
		s, err := generateRandomString(n)
		require.NoError(t, err)
		assert.Len(t, s, n)
	}
	a, _ := generateRandomString(32)
	b, _ := generateRandomString(32)
	assert.NotEqual(t, a, b)

	empty, err := generateRandomString(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetIDTokenFromToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	raw, err := getIDTokenFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", raw)

	_, err = getIDTokenFromToken((&oauth2.Token{}).WithExtra(map[string]any{"other": "x"}))
	require.ErrorContains(t, err, "missing id_token")

	_, err = getIDTokenFromToken(nil)
	require.ErrorContains(t, err, "nil token")
}
