package service

import (
	"context"
	"maps"

	"github.com/google/uuid"

	"github.com/target/projectdesk/internal/ports"
)

// Session binds a SessionStore to one client's token for the duration of a request.
// The token changes when the session is rotated.
type Session struct {
	store ports.SessionStore
	token string
}

// NewSession returns a handle on the session identified by token.
func NewSession(store ports.SessionStore, token string) *Session {
	return &Session{store: store, token: token}
}

// Token returns the opaque session token.
func (s *Session) Token() string { return s.token }

// Get reads the named attributes. Absent attributes are omitted.
func (s *Session) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	return s.store.Get(ctx, s.token, keys...)
}

// Set upserts attributes.
func (s *Session) Set(ctx context.Context, attrs map[string]string) error {
	return s.store.Set(ctx, s.token, attrs)
}

// Clear drops every attribute of the session.
func (s *Session) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.token)
}

// Rotate moves the session to a freshly minted token. The carry attributes are
// copied from the old token, attrs are written on top, and the old token is cleared.
// On error the handle keeps its old token.
func (s *Session) Rotate(ctx context.Context, attrs map[string]string, carry ...string) error {
	next := make(map[string]string, len(carry)+len(attrs))
	if len(carry) > 0 {
		kept, err := s.store.Get(ctx, s.token, carry...)
		if err != nil {
			return err
		}
		maps.Copy(next, kept)
	}
	maps.Copy(next, attrs)

	token := uuid.NewString()
	if err := s.store.Set(ctx, token, next); err != nil {
		return err
	}
	if err := s.store.Clear(ctx, s.token); err != nil {
		_ = s.store.Clear(ctx, token) //nolint:errcheck // the orphan expires on its own
		return err
	}
	s.token = token
	return nil
}
