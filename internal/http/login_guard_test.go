package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard(clock *manualClock) *LoginGuard {
	return NewLoginGuard(LoginGuardOptions{AttemptsPerMinute: 6, Burst: 2, Now: clock.now, IdleTTL: time.Hour})
}

func TestNewLoginGuard_DisabledIsNil(t *testing.T) {
	assert.Nil(t, NewLoginGuard(LoginGuardOptions{}))

	var g *LoginGuard
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	g.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLoginGuard_BurstThenRefill(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock)

	ok, _ := g.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = g.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, wait := g.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, float64(10*time.Second), float64(wait), float64(time.Millisecond))

	ok, _ = g.Allow("10.0.0.2")
	assert.True(t, ok, "clients are throttled independently")

	clock.advance(10 * time.Second)
	ok, _ = g.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestLoginGuard_EvictsIdleClients(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock)

	g.Allow("a")
	g.Allow("b")
	require.Equal(t, 2, g.size())

	clock.advance(2 * time.Hour)
	g.Allow("c")
	assert.Equal(t, 1, g.size())
}

func TestLoginGuard_Middleware(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock)
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	var last *httptest.ResponseRecorder
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "192.0.2.7:51234"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "10", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "too_many_login_attempts")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.1", clientIP(req, false))
	assert.Equal(t, "203.0.113.9", clientIP(req, true))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(req, false))
}
