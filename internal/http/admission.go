package httpx

import (
	"net/http"
	"time"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/observability/metrics"
	"github.com/target/projectdesk/internal/observability/statsd"
	"github.com/target/projectdesk/internal/service"
)

// AdmissionStep is one check a request must pass before its handler runs.
// A non-nil error rejects the request and short-circuits the remaining steps.
type AdmissionStep struct {
	Name  string
	Check func(r *http.Request, s *service.Session) error
}

// RateLimitStep charges the request against the session's fixed window.
func RateLimitStep(rl *service.RateLimiter) AdmissionStep {
	return AdmissionStep{
		Name: "rate_limit",
		Check: func(r *http.Request, s *service.Session) error {
			decision, err := rl.Check(r.Context(), s)
			if err != nil {
				return err
			}
			if !decision.Admitted {
				return &domainauth.RateLimitedError{RetryAfter: rl.RetryAfter(decision)}
			}
			return nil
		},
	}
}

// RequireIdentityStep rejects anonymous sessions and exposes the identity
// to the handler through IdentityFromContext.
func RequireIdentityStep(gate *service.AuthGate) AdmissionStep {
	return AdmissionStep{
		Name: "require_identity",
		Check: func(r *http.Request, s *service.Session) error {
			id, err := gate.RequireIdentity(r.Context(), s)
			if err != nil {
				return err
			}
			if st := admissionStateFrom(r.Context()); st != nil {
				st.identity = id
			}
			return nil
		},
	}
}

// AdmissionOptions configures the admission middleware.
type AdmissionOptions struct {
	Errors  ErrorWriter
	Metrics statsd.Sink // Optional
}

// Admit returns a middleware running steps in order against the request's session.
// The first failing step decides the response; later steps are not evaluated.
func Admit(opts AdmissionOptions, steps ...AdmissionStep) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				opts.Errors.Write(w, r, domainauth.ErrSessionUnavailable, "session_unavailable")
				return
			}
			ctx, _ := withAdmissionState(r.Context())
			r = r.WithContext(ctx)

			for _, step := range steps {
				start := time.Now()
				err := step.Check(r, sess)
				metrics.EmitAdmission(opts.Metrics, metrics.AdmissionMetric{
					Step:     step.Name,
					Err:      err,
					Duration: time.Since(start),
				})
				if err != nil {
					opts.Errors.Write(w, r, err, "admission_failed")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
