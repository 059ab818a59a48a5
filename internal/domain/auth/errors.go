package auth

import (
	"errors"
	"time"
)

// Admission error taxonomy. Every kind is terminal for the current request.
var (
	// ErrSessionUnavailable means the session store could not be read or written.
	ErrSessionUnavailable = errors.New("session store unavailable")
	// ErrRateLimited means the caller exhausted the current window.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrUnauthenticated means the session carries no identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrIncorrectCredentials is returned for every failed login regardless of cause.
	ErrIncorrectCredentials = errors.New("incorrect email or password")
)

// RateLimitedError carries back-off information for a rejected request.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() }

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
