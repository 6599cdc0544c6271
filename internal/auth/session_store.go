package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/trade-desk/internal/domain"
)

// ErrSessionNotFound is returned when a session was revoked or expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore caches the identity behind each live session so logout can revoke it.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Lookup(ctx context.Context, sessionID string) (*domain.Identity, error)
	Revoke(ctx context.Context, sessionID string) error
}

type redisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore stores sessions as JSON values with the token's TTL.
func NewRedisSessionStore(client *redis.Client, prefix string) SessionStore {
	return &redisSessionStore{client: client, prefix: prefix}
}

func (s *redisSessionStore) Save(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session.Identity)
	if err != nil {
		return err
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.prefix+session.ID, payload, ttl).Err()
}

func (s *redisSessionStore) Lookup(ctx context.Context, sessionID string) (*domain.Identity, error) {
	raw, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil || identity.ID == "" {
		return nil, ErrSessionNotFound
	}
	return &identity, nil
}

func (s *redisSessionStore) Revoke(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}

type memorySessionEntry struct {
	identity  domain.Identity
	expiresAt time.Time
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySessionEntry
	now      func() time.Time
}

// NewMemorySessionStore keeps sessions in process memory.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{sessions: make(map[string]memorySessionEntry), now: time.Now}
}

func (s *memorySessionStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = memorySessionEntry{identity: session.Identity, expiresAt: session.ExpiresAt}
	return nil
}

func (s *memorySessionStore) Lookup(_ context.Context, sessionID string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, sessionID)
		return nil, ErrSessionNotFound
	}
	identity := entry.identity
	return &identity, nil
}

func (s *memorySessionStore) Revoke(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
