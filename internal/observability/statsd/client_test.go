package statsd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"projectdesk", "admission.check", "projectdesk.admission.check"},
		{"", "auth.login", "auth.login"},
		{"p", " spaced name/with:colon ", "p.spaced_name_with_colon"},
		{"p", "..double..dots..", "p.double.dots"},
		{"p", "   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, metricName(tt.prefix, tt.name), tt.name)
	}
}

func TestLineFormatting(t *testing.T) {
	c := &Client{prefix: "projectdesk", globalTags: map[string]string{"env": "test", "step": "global"}}

	assert.Equal(t,
		"projectdesk.admission.check:1|c|#env:test,result:admitted,step:rate_limit",
		c.line("admission.check", "1", "c", map[string]string{"step": "rate_limit", "result": "admitted", " ": "x"}))

	bare := &Client{}
	assert.Equal(t, "auth.login:2|c", bare.line("auth.login", "2", "c", nil))
	assert.Empty(t, bare.line("", "1", "c", nil))
}

func TestClientSendsDatagrams(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	c, err := Dial(context.Background(), Config{Address: pc.LocalAddr().String(), Prefix: "pd."})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	read := func() string {
		t.Helper()
		buf := make([]byte, 512)
		require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := pc.ReadFrom(buf)
		require.NoError(t, err)
		return string(buf[:n])
	}

	c.Count("auth.login", 1, map[string]string{"result": "success"})
	assert.Equal(t, "pd.auth.login:1|c|#result:success", read())

	c.Timing("admission.duration", 1500*time.Microsecond, nil)
	assert.Equal(t, "pd.admission.duration:1.5|ms", read())

	c.Gauge("sessions.active", 3.25, nil)
	assert.Equal(t, "pd.sessions.active:3.25|g", read())
}

func TestCloseDropsLaterWrites(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	c, err := Dial(context.Background(), Config{Address: pc.LocalAddr().String()})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.NotPanics(t, func() { c.Count("after.close", 1, nil) })

	var nilClient *Client
	assert.NotPanics(t, func() { nilClient.Count("x", 1, nil) })
	assert.NoError(t, nilClient.Close())
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial(context.Background(), Config{Address: "  "})
	require.Error(t, err)

	_, err = Dial(context.Background(), Config{Address: "not-a-host-port"})
	require.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard.Count("x", 1, nil)
		Discard.Gauge("x", 1, nil)
		Discard.Timing("x", time.Second, nil)
	})
}
