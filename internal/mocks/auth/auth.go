package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider   = (*MockAuthProvider)(nil)
	_ ports.SessionStore   = (*MemorySessionStore)(nil)
	_ ports.PasswordHasher = StaticHasher{}
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error)

	// Deterministic values for predictable testing
	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.ExternalIdentity

	mu        sync.Mutex
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: domainauth.ExternalIdentity{
			Subject:   "mock-user-1",
			FirstName: "Mock",
			LastName:  "User",
			Email:     "mock.user@example.com",
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	user := m.DefaultUser
	if user.Email == "" {
		user = domainauth.ExternalIdentity{Subject: "mock-user-1", Email: "mock.user@example.com"}
	}
	return user, nil
}

// MemorySessionStore is an in-memory attribute store for unit tests.
// GetErr, SetErr and ClearErr inject failures; the counters record calls.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]string

	GetErr   error
	SetErr   error
	ClearErr error

	Gets   int
	Sets   int
	Clears int
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]map[string]string)}
}

func (m *MemorySessionStore) Get(_ context.Context, token string, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	out := make(map[string]string, len(keys))
	attrs := m.sessions[token]
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemorySessionStore) Set(_ context.Context, token string, attrs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	if m.SetErr != nil {
		return m.SetErr
	}
	cur, ok := m.sessions[token]
	if !ok {
		cur = make(map[string]string, len(attrs))
		m.sessions[token] = cur
	}
	maps.Copy(cur, attrs)
	return nil
}

func (m *MemorySessionStore) Clear(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Clears++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	delete(m.sessions, token)
	return nil
}

// Snapshot returns a copy of every attribute stored for token.
func (m *MemorySessionStore) Snapshot(token string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.sessions[token])
}

// Put seeds attributes without touching the call counters.
func (m *MemorySessionStore) Put(token string, attrs map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[token]
	if !ok {
		cur = make(map[string]string, len(attrs))
		m.sessions[token] = cur
	}
	maps.Copy(cur, attrs)
}

// StaticHasher is a reversible PasswordHasher for tests: hashes are "plain:<secret>".
type StaticHasher struct {
	HashErr error
}

const staticHashPrefix = "plain:"

func (h StaticHasher) Hash(secret string) (string, error) {
	if h.HashErr != nil {
		return "", h.HashErr
	}
	return staticHashPrefix + secret, nil
}

func (StaticHasher) Verify(secret, encoded string) (bool, error) {
	stored, ok := strings.CutPrefix(encoded, staticHashPrefix)
	if !ok {
		return false, fmt.Errorf("unsupported hash format")
	}
	return stored == secret, nil
}
