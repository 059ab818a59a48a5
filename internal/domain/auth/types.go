package auth

// Package auth contains domain-level types for request admission and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strconv"
	"strings"
	"time"
)

// Session attribute keys.
const (
	AttrIdentity        = "identity"
	AttrRateCounter     = "rate_counter"
	AttrRateWindowStart = "rate_window_start"
	AttrSSOState        = "sso_state"
	AttrSSONonce        = "sso_nonce"
)

// Identity is the authenticated principal resolved from a session.
// It is valid only for the request that extracted it.
type Identity struct {
	Email string
}

// IsZero reports whether the identity carries no principal.
func (i Identity) IsZero() bool { return strings.TrimSpace(i.Email) == "" }

// ExternalIdentity represents the principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type ExternalIdentity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

// DisplayName joins the first and last name when either is present.
func (e ExternalIdentity) DisplayName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// RateState is the fixed-window counter persisted in a session.
type RateState struct {
	Counter     int
	WindowStart time.Time
}

// DecodeRateState parses the stored counter attributes. Missing or malformed
// values fall back to a zero counter and a window starting at now; the
// returned flag reports whether a window start was found.
func DecodeRateState(attrs map[string]string, now time.Time) (RateState, bool) {
	st := RateState{WindowStart: now}
	if raw, ok := attrs[AttrRateCounter]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			st.Counter = n
		}
	}
	raw, ok := attrs[AttrRateWindowStart]
	if !ok {
		return st, false
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return st, false
	}
	st.WindowStart = ts
	return st, true
}

// EncodeCounter formats a counter value for storage.
func EncodeCounter(n int) string { return strconv.Itoa(n) }

// EncodeWindowStart formats a window start for storage.
func EncodeWindowStart(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// RateDecision is the outcome of one admission check.
type RateDecision struct {
	// Admitted is true when the request may proceed.
	Admitted bool
	// Counter is the number of requests admitted in the current window.
	Counter int
	// ResetAt is when the current window closes. Zero when the limiter is disabled.
	ResetAt time.Time
}

// Admit is the decision returned when no accounting takes place.
var Admit = RateDecision{Admitted: true}
