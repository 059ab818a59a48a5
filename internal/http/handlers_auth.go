package httpx

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/domain/model"
	"github.com/target/projectdesk/internal/observability/metrics"
	"github.com/target/projectdesk/internal/observability/statsd"
	"github.com/target/projectdesk/internal/service"
)

const (
	ssoReturnCookie = "sso_return_to"
	ssoReturnMaxAge = 10 * time.Minute
)

// AuthHandlers serves login, logout, whoami, signup and the SSO round trip.
type AuthHandlers struct {
	Lifecycle *service.SessionLifecycle
	Accounts  *service.AccountService
	SSO       *service.SSOService // Optional: nil when AUTH_MODE=local
	// CallbackURL is the absolute URL of the SSO callback route handed to the IdP.
	CallbackURL  string
	CookieDomain string
	Metrics      statsd.Sink // Optional
	Errors       ErrorWriter
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates the session with email and password.
// POST /api/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.Errors.Write(w, r, domainauth.ErrSessionUnavailable, "session_unavailable")
		return
	}

	id, err := h.Lifecycle.Login(r.Context(), sess, req.Email, req.Password)
	metrics.EmitLogin(h.Metrics, metrics.LoginMetric{Method: "password", Err: err})
	if err != nil {
		h.Errors.Write(w, r, err, "login_failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"email": id.Email, "message": "Login successful"})
}

// Logout drops every attribute of the session. Anonymous sessions get the same answer.
// POST /api/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	if err := h.Lifecycle.Logout(r.Context(), sess); err != nil {
		h.Errors.Write(w, r, err, "logout_failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Me reports the identity resolved by the admission chain.
// GET /api/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		h.Errors.Write(w, r, domainauth.ErrUnauthenticated, "authentication_required")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"email": id.Email, "authenticated": true})
}

// Signup registers a local account. It does not log the session in.
// POST /api/signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	acct, err := h.Accounts.Register(r.Context(), req)
	if err != nil {
		h.Errors.Write(w, r, err, "signup_failed")
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"email": acct.Email})
}

// SSOLogin starts the authorization-code flow and redirects to the IdP.
// GET /api/auth/sso/login?return_to=<relative path>.
func (h *AuthHandlers) SSOLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.Errors.Write(w, r, domainauth.ErrSessionUnavailable, "session_unavailable")
		return
	}

	authURL, err := h.SSO.Begin(r.Context(), sess, h.CallbackURL)
	if err != nil {
		h.Errors.Write(w, r, err, "sso_begin_failed")
		return
	}

	if returnTo := safeReturnPath(r.URL.Query().Get("return_to")); returnTo != "" {
		h.setCookie(w, r, &http.Cookie{Name: ssoReturnCookie, Value: returnTo, MaxAge: int(ssoReturnMaxAge.Seconds())})
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// SSOCallback completes the flow started by SSOLogin.
// GET /api/auth/sso/callback?code=<code>&state=<state>.
func (h *AuthHandlers) SSOCallback(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.Errors.Write(w, r, domainauth.ErrSessionUnavailable, "session_unavailable")
		return
	}

	q := r.URL.Query()
	if idpErr := q.Get("error"); idpErr != "" {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error":   "sso_denied",
			"message": "identity provider returned " + idpErr,
		})
		return
	}

	id, err := h.SSO.Complete(r.Context(), sess, service.CompleteInput{Code: q.Get("code"), State: q.Get("state")})
	metrics.EmitLogin(h.Metrics, metrics.LoginMetric{Method: "sso", Err: err})
	if err != nil {
		h.Errors.Write(w, r, err, "sso_callback_failed")
		return
	}

	if c, cerr := r.Cookie(ssoReturnCookie); cerr == nil {
		h.setCookie(w, r, &http.Cookie{Name: ssoReturnCookie, MaxAge: -1, Expires: time.Unix(0, 0).UTC()})
		if dest := safeReturnPath(c.Value); dest != "" {
			http.Redirect(w, r, dest, http.StatusFound)
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"email": id.Email, "message": "Login successful"})
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, r *http.Request, c *http.Cookie) {
	c.Path = "/"
	c.Domain = h.CookieDomain
	c.HttpOnly = true
	c.Secure = isSecureRequest(r)
	c.SameSite = http.SameSiteLaxMode
	http.SetCookie(w, c)
}

// safeReturnPath accepts only same-origin relative paths.
func safeReturnPath(raw string) string {
	if raw == "" || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return ""
	}
	return u.String()
}
