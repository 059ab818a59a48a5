package redis

// Package redis provides Redis-based adapters for the projectdesk system.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionPrefix namespaces session hashes when no prefix is configured.
const DefaultSessionPrefix = "session:"

// ErrEmptyToken is returned when an operation is attempted without a session token.
var ErrEmptyToken = errors.New("session token cannot be empty")

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Prefix string        // Optional: key prefix, defaults to DefaultSessionPrefix
	TTL    time.Duration // Required: inactivity expiry refreshed on every access
}

// SessionStore keeps each session's attributes in one Redis hash.
// Every read or write refreshes the hash TTL, giving a sliding inactivity expiry.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient, opts SessionStoreOptions) (*SessionStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &SessionStore{client: client, prefix: prefix, ttl: opts.TTL}, nil
}

func (s *SessionStore) key(token string) string { return s.prefix + token }

// Get returns the requested attributes; absent attributes are omitted.
func (s *SessionStore) Get(ctx context.Context, token string, keys ...string) (map[string]string, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	key := s.key(token)
	var values *redis.SliceCmd
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		values = p.HMGet(ctx, key, keys...)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}

	for i, v := range values.Val() {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

// Set upserts attributes and refreshes the expiry in one transaction.
func (s *SessionStore) Set(ctx context.Context, token string, attrs map[string]string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if len(attrs) == 0 {
		return nil
	}

	key := s.key(token)
	fields := make([]any, 0, len(attrs)*2)
	for k, v := range attrs {
		fields = append(fields, k, v)
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fields...)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Clear deletes the whole session hash.
func (s *SessionStore) Clear(ctx context.Context, token string) error {
	if token == "" {
		return nil // Nothing to delete
	}
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping reports whether the backing Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
