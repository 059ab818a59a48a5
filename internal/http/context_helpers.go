package httpx

import (
	"context"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/service"
)

// sessionKey and admissionKey are unexported context key types to avoid collisions across packages.
type (
	sessionKey   struct{}
	admissionKey struct{}
)

// admissionState is filled in by admission steps for the handler to read.
type admissionState struct {
	identity domainauth.Identity
}

// SetSessionInContext returns a child context that carries the given session handle.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *service.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the request's session handle and whether one is present.
func SessionFromContext(ctx context.Context) (*service.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*service.Session)
	return s, ok && s != nil
}

// IdentityFromContext returns the identity resolved by the RequireIdentity step.
func IdentityFromContext(ctx context.Context) (domainauth.Identity, bool) {
	st, ok := ctx.Value(admissionKey{}).(*admissionState)
	if !ok || st == nil || st.identity.IsZero() {
		return domainauth.Identity{}, false
	}
	return st.identity, true
}

func withAdmissionState(ctx context.Context) (context.Context, *admissionState) {
	st := &admissionState{}
	return context.WithValue(ctx, admissionKey{}, st), st
}

func admissionStateFrom(ctx context.Context) *admissionState {
	st, _ := ctx.Value(admissionKey{}).(*admissionState)
	return st
}
