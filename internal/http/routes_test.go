package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/projectdesk/internal/core"
	"github.com/target/projectdesk/internal/data"
	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/domain/model"
	"github.com/target/projectdesk/internal/mocks"
	authmocks "github.com/target/projectdesk/internal/mocks/auth"
	"github.com/target/projectdesk/internal/service"
)

var routerEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type routerFixture struct {
	store    *authmocks.MemorySessionStore
	clock    *data.FixedTimeProvider
	accounts *mocks.MockAccountRepository
	projects *mocks.MockProjectRepository
	handler  http.Handler
}

type routerFixtureOptions struct {
	Limiter service.RateLimiterConfig
	Health  []HealthCheck
	SSO     *authmocks.MockAuthProvider
}

func newRouterFixture(t *testing.T, opts routerFixtureOptions) *routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &routerFixture{
		store:    authmocks.NewMemorySessionStore(),
		clock:    data.NewFixedTimeProvider(routerEpoch),
		accounts: mocks.NewMockAccountRepository(ctrl),
		projects: mocks.NewMockProjectRepository(ctrl),
	}
	hasher := authmocks.StaticHasher{}

	rl, err := service.NewRateLimiter(service.RateLimiterOptions{Config: opts.Limiter, Clock: f.clock})
	require.NoError(t, err)
	lifecycle, err := service.NewSessionLifecycle(service.SessionLifecycleOptions{Accounts: f.accounts, Hasher: hasher})
	require.NoError(t, err)
	accounts, err := service.NewAccountService(service.AccountServiceOptions{Repo: f.accounts, Hasher: hasher})
	require.NoError(t, err)
	projects, err := service.NewProjectService(service.ProjectServiceOptions{Repo: f.projects})
	require.NoError(t, err)

	var sso *service.SSOService
	if opts.SSO != nil {
		sso, err = service.NewSSOService(service.SSOServiceOptions{Provider: opts.SSO, Lifecycle: lifecycle})
		require.NoError(t, err)
	}

	f.handler = NewRouter(RouterServices{
		SessionStore:  f.store,
		RateLimiter:   rl,
		Gate:          service.NewAuthGate(nil),
		Lifecycle:     lifecycle,
		Accounts:      accounts,
		Projects:      projects,
		SSO:           sso,
		Health:        opts.Health,
		BaseURL:       "http://localhost:8080",
		SessionMaxAge: time.Hour,
		BodyLimit:     1024,
	})
	return f
}

// client carries the session cookie between requests like a browser would.
type client struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (f *routerFixture) client(t *testing.T) *client {
	return &client{t: t, h: f.handler}
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == defaultSessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func localAccount(email, secret string) *model.Account {
	hash := "plain:" + secret
	return &model.Account{ID: "acct-1", Email: email, PasswordHash: &hash, Provider: model.ProviderLocal}
}

func TestRouter_LoginRoundTrip(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	f.accounts.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").
		Return(localAccount("alice@example.com", "s3cret-pass"), nil)
	c := f.client(t)

	rec := c.do(http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication_required", decodeBody(t, rec)["error"])

	rec = c.do(http.MethodPost, "/api/login", `{"email":" Alice@Example.com ","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"email":"alice@example.com","message":"Login successful"}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"alice@example.com","authenticated":true}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Logout successful"}`, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/api/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code, "logout is idempotent")
}

func TestRouter_LoginIssuesFreshToken(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	f.accounts.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").
		Return(localAccount("alice@example.com", "s3cret-pass"), nil)

	planted := &http.Cookie{Name: defaultSessionCookie, Value: "11111111-2222-3333-4444-555555555555"}
	victim := f.client(t)
	victim.cookie = planted

	rec := victim.do(http.MethodPost, "/api/login", `{"email":"alice@example.com","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEqual(t, planted.Value, victim.cookie.Value)
	assert.Len(t, rec.Result().Cookies(), 1)

	assert.Equal(t, http.StatusOK, victim.do(http.MethodGet, "/api/me", "").Code)

	attacker := f.client(t)
	attacker.cookie = planted
	rec = attacker.do(http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.store.Snapshot(planted.Value)[domainauth.AttrIdentity])
}

func TestRouter_LoginFailuresAreUniform(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	f.accounts.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").
		Return(localAccount("alice@example.com", "s3cret-pass"), nil)
	f.accounts.EXPECT().GetByEmail(gomock.Any(), "nobody@example.com").
		Return(nil, model.ErrAccountNotFound)
	c := f.client(t)

	wrong := c.do(http.MethodPost, "/api/login", `{"email":"alice@example.com","password":"nope-nope"}`)
	unknown := c.do(http.MethodPost, "/api/login", `{"email":"nobody@example.com","password":"nope-nope"}`)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "invalid_credentials", decodeBody(t, wrong)["error"])
	_, present := f.store.Snapshot(c.cookie.Value)[domainauth.AttrIdentity]
	assert.False(t, present)
}

func TestRouter_FixedWindowEndToEnd(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{
		Limiter: service.RateLimiterConfig{Enabled: true, Window: time.Minute, MaxRequests: 2},
	})
	c := f.client(t)

	// Anonymous requests are charged before the identity check.
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", "").Code)

	f.clock.AddTime(10 * time.Second)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", "").Code)

	f.clock.AddTime(10 * time.Second)
	rec := c.do(http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "40", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeBody(t, rec)["error"])

	f.clock.AddTime(45 * time.Second)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", "").Code)
	assert.Equal(t, "1", f.store.Snapshot(c.cookie.Value)[domainauth.AttrRateCounter])
}

func TestRouter_StoreOutageIsServiceUnavailable(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{
		Limiter: service.RateLimiterConfig{Enabled: true, Window: time.Minute, MaxRequests: 50},
	})
	f.store.GetErr = errors.New("connection refused")

	rec := f.client(t).do(http.MethodGet, "/api/projects", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"session_unavailable","message":"session store unavailable"}`, rec.Body.String())
}

func TestRouter_DisabledLimiterNeverWrites(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	c := f.client(t)

	for range 20 {
		assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", "").Code)
	}
	assert.Zero(t, f.store.Sets)
}

func TestRouter_Signup(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	f.accounts.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req model.CreateAccountRequest) (*model.Account, error) {
			assert.Equal(t, "new@example.com", req.Email)
			require.NotNil(t, req.PasswordHash)
			assert.Equal(t, "plain:long-enough", *req.PasswordHash)
			return &model.Account{ID: "acct-2", Email: req.Email, Provider: model.ProviderLocal}, nil
		})
	f.accounts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, model.ErrAccountExists)
	c := f.client(t)

	rec := c.do(http.MethodPost, "/api/signup", `{"email":"New@example.com","password":"long-enough"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"email":"new@example.com"}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/signup", `{"email":"new@example.com","password":"long-enough"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "account_exists", decodeBody(t, rec)["error"])

	rec = c.do(http.MethodPost, "/api/signup", `{"email":"new@example.com","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeBody(t, rec)["error"])
}

// loggedIn seeds an identity onto a fresh client's session.
func (f *routerFixture) loggedIn(t *testing.T, email string) *client {
	t.Helper()
	c := f.client(t)
	c.do(http.MethodGet, "/healthz", "")
	require.NotNil(t, c.cookie)
	f.store.Put(c.cookie.Value, map[string]string{domainauth.AttrIdentity: email})
	return c
}

func TestRouter_AccountEmailChangeLogsOut(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	acct := localAccount("alice@example.com", "s3cret-pass")
	f.accounts.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").Return(acct, nil).Times(2)
	f.accounts.EXPECT().Update(gomock.Any(), "alice@example.com", gomock.Any()).
		Return(&model.Account{Email: "alice@new.example.com", Provider: model.ProviderLocal}, nil)
	c := f.loggedIn(t, "alice@example.com")

	rec := c.do(http.MethodGet, "/api/account", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"alice@example.com","name":"","provider":"local"}`, rec.Body.String())

	rec = c.do(http.MethodPut, "/api/account", `{"email":"alice@new.example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "alice@new.example.com", body["email"])
	assert.Equal(t, true, body["reauthenticate"])

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", "").Code)
}

func TestRouter_SSOAccountEmailIsFixed(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	f.accounts.EXPECT().GetByEmail(gomock.Any(), "sso@example.com").
		Return(&model.Account{Email: "sso@example.com", Provider: model.ProviderOIDC}, nil)
	c := f.loggedIn(t, "sso@example.com")

	rec := c.do(http.MethodPut, "/api/account", `{"email":"other@example.com"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "email_managed_by_provider", decodeBody(t, rec)["error"])
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/me", "").Code, "session stays logged in")
}

func TestRouter_AccountPasswordChangeNeedsCurrent(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	f.accounts.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").
		Return(localAccount("alice@example.com", "s3cret-pass"), nil).Times(2)
	c := f.loggedIn(t, "alice@example.com")

	rec := c.do(http.MethodPut, "/api/account", `{"new_password":"another-pass"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "current_password_required", decodeBody(t, rec)["error"])

	rec = c.do(http.MethodPut, "/api/account", `{"new_password":"another-pass","current_password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_current_password", decodeBody(t, rec)["error"])
}

func TestRouter_ProjectsCRUD(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	c := f.loggedIn(t, "alice@example.com")
	p := &model.Project{ID: "6f1c2f0e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", Name: "Apollo", CreatedAt: routerEpoch, UpdatedAt: routerEpoch}
	ref := core.ProjectRef{OwnerEmail: "alice@example.com", ID: p.ID}

	f.projects.EXPECT().Create(gomock.Any(), "alice@example.com", gomock.Any()).Return(p, nil)
	rec := c.do(http.MethodPost, "/api/projects", `{"name":"Apollo"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, p.ID, decodeBody(t, rec)["id"])

	f.projects.EXPECT().List(gomock.Any(), model.ProjectListOptions{OwnerEmail: "alice@example.com", Limit: 10, Offset: 5}).
		Return([]*model.Project{p}, nil)
	rec = c.do(http.MethodGet, "/api/projects?limit=10&offset=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["projects"], 1)
	assert.InDelta(t, 10, body["limit"], 0)

	f.projects.EXPECT().GetByID(gomock.Any(), ref).Return(p, nil)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/projects/"+p.ID, "").Code)

	f.projects.EXPECT().Update(gomock.Any(), ref, gomock.Any()).Return(p, nil)
	assert.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/projects/"+p.ID, `{"name":"Apollo 2"}`).Code)

	f.projects.EXPECT().Delete(gomock.Any(), ref).Return(nil)
	rec = c.do(http.MethodDelete, "/api/projects/"+p.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":true}`, rec.Body.String())
}

func TestRouter_ForeignProjectIsNotFound(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	c := f.loggedIn(t, "mallory@example.com")
	f.projects.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, model.ErrProjectNotFound)

	rec := c.do(http.MethodGet, "/api/projects/6f1c2f0e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "project_not_found", decodeBody(t, rec)["error"])
}

func TestRouter_ProjectsRequireIdentity(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	rec := f.client(t).do(http.MethodPost, "/api/projects", `{"name":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	healthy := newRouterFixture(t, routerFixtureOptions{Health: []HealthCheck{
		{Name: "postgres", Pinger: PingFunc(func(context.Context) error { return nil })},
	}})
	rec := healthy.client(t).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = healthy.client(t).do(http.MethodHead, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())

	down := newRouterFixture(t, routerFixtureOptions{Health: []HealthCheck{
		{Name: "postgres", Pinger: PingFunc(func(context.Context) error { return nil })},
		{Name: "redis", Pinger: PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })},
	}})
	rec = down.client(t).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestRouter_SSORoundTrip(t *testing.T) {
	idp := authmocks.NewMockAuthProvider()
	f := newRouterFixture(t, routerFixtureOptions{SSO: idp})
	f.accounts.EXPECT().GetByEmail(gomock.Any(), "mock.user@example.com").Return(nil, model.ErrAccountNotFound)
	f.accounts.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req model.CreateAccountRequest) (*model.Account, error) {
			assert.Equal(t, model.ProviderOIDC, req.Provider)
			return &model.Account{Email: req.Email, Provider: req.Provider}, nil
		})
	c := f.client(t)

	rec := c.do(http.MethodGet, "/api/auth/sso/login?return_to=/projects", "")
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "https://mock-idp/auth", rec.Header().Get("Location"))
	state := f.store.Snapshot(c.cookie.Value)[domainauth.AttrSSOState]
	require.NotEmpty(t, state)

	rec = c.do(http.MethodGet, "/api/auth/sso/callback?code=abc&state=forged", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_state", decodeBody(t, rec)["error"])

	// A rejected callback does not consume the pending state.
	rec = c.do(http.MethodGet, "/api/auth/sso/callback?code=abc&state="+state, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "mock.user@example.com", decodeBody(t, rec)["email"])

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/me", "").Code)
}

func TestRouter_SSORoutesAbsentInLocalMode(t *testing.T) {
	f := newRouterFixture(t, routerFixtureOptions{})
	rec := f.client(t).do(http.MethodGet, "/api/auth/sso/login", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSafeReturnPath(t *testing.T) {
	assert.Equal(t, "/projects?x=1", safeReturnPath("/projects?x=1"))
	assert.Empty(t, safeReturnPath("https://evil.example/"))
	assert.Empty(t, safeReturnPath("//evil.example"))
	assert.Empty(t, safeReturnPath(`/\evil.example`))
	assert.Empty(t, safeReturnPath("relative"))
	assert.Empty(t, safeReturnPath(""))
}
