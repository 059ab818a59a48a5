package metrics

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/projectdesk/internal/domain/auth"
)

type recordedMetric struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

type recordingSink struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.add(recordedMetric{kind: "count", name: name, value: float64(value), tags: tags})
}

func (s *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	s.add(recordedMetric{kind: "gauge", name: name, value: value, tags: tags})
}

func (s *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.add(recordedMetric{kind: "timing", name: name, value: float64(value), tags: tags})
}

func (s *recordingSink) add(m recordedMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

func TestEmitAdmission(t *testing.T) {
	sink := &recordingSink{}

	EmitAdmission(sink, AdmissionMetric{Step: "rate_limit", Duration: time.Millisecond})
	EmitAdmission(sink, AdmissionMetric{
		Step: "rate_limit",
		Err:  &domainauth.RateLimitedError{RetryAfter: time.Second},
	})

	require.Len(t, sink.metrics, 3)
	assert.Equal(t, "admission.check", sink.metrics[0].name)
	assert.Equal(t, ResultAdmitted, sink.metrics[0].tags["result"])
	assert.Equal(t, "timing", sink.metrics[1].kind)
	assert.Equal(t, ResultRejected, sink.metrics[2].tags["result"])
	assert.Equal(t, "rate_limited", sink.metrics[2].tags["reason"])
}

func TestEmitLogin(t *testing.T) {
	sink := &recordingSink{}

	EmitLogin(sink, LoginMetric{Method: "password"})
	EmitLogin(sink, LoginMetric{Method: "password", Err: domainauth.ErrIncorrectCredentials})
	EmitLogin(sink, LoginMetric{Method: "sso", Err: fmt.Errorf("%w: boom", domainauth.ErrSessionUnavailable)})

	require.Len(t, sink.metrics, 3)
	assert.Equal(t, ResultSuccess, sink.metrics[0].tags["result"])
	assert.Equal(t, ResultFailure, sink.metrics[1].tags["result"])
	assert.NotContains(t, sink.metrics[1].tags, "reason")
	assert.Equal(t, ResultError, sink.metrics[2].tags["result"])
	assert.Equal(t, "session_unavailable", sink.metrics[2].tags["reason"])
}

func TestEmit_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitAdmission(nil, AdmissionMetric{Step: "auth"})
		EmitLogin(nil, LoginMetric{Method: "password"})
	})
}

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestReason(t *testing.T) {
	assert.Empty(t, Reason(nil))
	assert.Equal(t, "unauthenticated", Reason(domainauth.ErrUnauthenticated))
	assert.Equal(t, "metrics_customerr", Reason(fmt.Errorf("wrap: %w", customErr{})))
	assert.Equal(t, "errors_errorstring", Reason(errors.New("plain")))
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	dst := CloneTags(src)
	dst["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
