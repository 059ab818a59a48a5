package httpx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/projectdesk/internal/ports"
	"github.com/target/projectdesk/internal/service"
)

// SessionOptions configures the session cookie middleware.
type SessionOptions struct {
	Store        ports.SessionStore // Required
	CookieName   string             // Defaults to "session_id"
	CookieDomain string
	// MaxAge mirrors the store's inactivity expiry so the cookie lives as long as the session.
	MaxAge time.Duration
	Logger *slog.Logger
}

// Sessions returns a middleware that binds every request to a session handle.
// Requests without a usable cookie get a freshly minted token; no store access happens here.
// The cookie is written when the response headers go out, so a token rotated by the
// handler (login) replaces the one the client sent.
func Sessions(opts SessionOptions) func(http.Handler) http.Handler {
	name := opts.CookieName
	if name == "" {
		name = defaultSessionCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(name); err == nil {
				if validSessionToken(c.Value) {
					token = c.Value
				} else if opts.Logger != nil {
					opts.Logger.DebugContext(r.Context(), "replacing malformed session cookie")
				}
			}
			if token == "" {
				token = uuid.NewString()
			}
			sess := service.NewSession(opts.Store, token)
			cw := &sessionCookieWriter{
				ResponseWriter: w,
				r:              r,
				sess:           sess,
				params:         sessionCookieParams{Name: name, Domain: opts.CookieDomain, MaxAge: opts.MaxAge},
			}
			next.ServeHTTP(cw, r.WithContext(SetSessionInContext(r.Context(), sess)))
			cw.setCookie()
		})
	}
}

// sessionCookieWriter sets the session cookie once, just before the headers are sent.
// The cookie is refreshed on every response so its lifetime slides with the store's expiry.
type sessionCookieWriter struct {
	http.ResponseWriter
	r      *http.Request
	sess   *service.Session
	params sessionCookieParams
	done   bool
}

func (w *sessionCookieWriter) setCookie() {
	if w.done {
		return
	}
	w.done = true
	p := w.params
	p.Value = w.sess.Token()
	http.SetCookie(w.ResponseWriter, sessionCookie(w.r, p))
}

func (w *sessionCookieWriter) WriteHeader(status int) {
	w.setCookie()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionCookieWriter) Write(b []byte) (int, error) {
	w.setCookie()
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *sessionCookieWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

const defaultSessionCookie = "session_id"

// validSessionToken accepts only tokens minted by Sessions.
func validSessionToken(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil && len(v) == 36
}

// sessionCookieParams groups values needed to build the session cookie (≤3 params rule).
type sessionCookieParams struct {
	Name   string
	Value  string
	Domain string
	MaxAge time.Duration
}

func sessionCookie(r *http.Request, p sessionCookieParams) *http.Cookie {
	c := &http.Cookie{
		Name:     p.Name,
		Value:    p.Value,
		Path:     "/",
		Domain:   p.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
	if p.MaxAge > 0 {
		c.MaxAge = int(p.MaxAge.Seconds())
	}
	return c
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
