// Package metrics emits the request-admission and login metrics.
package metrics

import (
	"errors"
	"maps"
	"time"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	obserrors "github.com/target/projectdesk/internal/observability/errors"
	"github.com/target/projectdesk/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultAdmitted = "admitted"
	ResultRejected = "rejected"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultError    = "error"
)

// AdmissionMetric captures the outcome of one admission step.
type AdmissionMetric struct {
	Step     string
	Err      error
	Duration time.Duration
}

// EmitAdmission records one admission step outcome.
func EmitAdmission(sink statsd.Sink, in AdmissionMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"step": in.Step, "result": ResultAdmitted}
	if in.Err != nil {
		tags["result"] = ResultRejected
		tags["reason"] = Reason(in.Err)
	}
	sink.Count("admission.check", 1, tags)
	if in.Duration > 0 {
		sink.Timing("admission.duration", in.Duration, CloneTags(tags))
	}
}

// LoginMetric captures the outcome of one login attempt.
type LoginMetric struct {
	Method string // "password" or "sso"
	Err    error
}

// EmitLogin records one login attempt.
func EmitLogin(sink statsd.Sink, in LoginMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"method": in.Method, "result": ResultSuccess}
	switch {
	case in.Err == nil:
	case errors.Is(in.Err, domainauth.ErrIncorrectCredentials):
		tags["result"] = ResultFailure
	default:
		tags["result"] = ResultError
		tags["reason"] = Reason(in.Err)
	}
	sink.Count("auth.login", 1, tags)
}

// Reason maps an error to a low-cardinality tag value.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domainauth.ErrSessionUnavailable):
		return "session_unavailable"
	case errors.Is(err, domainauth.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domainauth.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domainauth.ErrIncorrectCredentials):
		return "invalid_credentials"
	default:
		return obserrors.Classify(err)
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
