package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecodeRateState(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-10 * time.Second)

	tests := []struct {
		name       string
		attrs      map[string]string
		wantState  RateState
		wantAnchor bool
	}{
		{
			name:      "empty session defaults to fresh window",
			attrs:     map[string]string{},
			wantState: RateState{Counter: 0, WindowStart: now},
		},
		{
			name: "stored values are parsed",
			attrs: map[string]string{
				AttrRateCounter:     "7",
				AttrRateWindowStart: EncodeWindowStart(start),
			},
			wantState:  RateState{Counter: 7, WindowStart: start},
			wantAnchor: true,
		},
		{
			name: "malformed values fall back",
			attrs: map[string]string{
				AttrRateCounter:     "seven",
				AttrRateWindowStart: "yesterday",
			},
			wantState: RateState{Counter: 0, WindowStart: now},
		},
		{
			name:      "negative counter ignored",
			attrs:     map[string]string{AttrRateCounter: "-4"},
			wantState: RateState{Counter: 0, WindowStart: now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, anchored := DecodeRateState(tt.attrs, now)
			assert.Equal(t, tt.wantState.Counter, got.Counter)
			assert.True(t, tt.wantState.WindowStart.Equal(got.WindowStart))
			assert.Equal(t, tt.wantAnchor, anchored)
		})
	}
}

func TestIdentity_IsZero(t *testing.T) {
	assert.True(t, Identity{}.IsZero())
	assert.True(t, Identity{Email: "  "}.IsZero())
	assert.False(t, Identity{Email: "a@x.com"}.IsZero())
}

func TestRateLimitedError_MatchesSentinel(t *testing.T) {
	err := error(&RateLimitedError{RetryAfter: 5 * time.Second})
	assert.True(t, errors.Is(err, ErrRateLimited))

	var rl *RateLimitedError
	assert.True(t, errors.As(err, &rl))
	assert.Equal(t, 5*time.Second, rl.RetryAfter)
}

func TestExternalIdentity_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", ExternalIdentity{FirstName: "Ada", LastName: "Lovelace"}.DisplayName())
	assert.Equal(t, "", ExternalIdentity{}.DisplayName())
}
