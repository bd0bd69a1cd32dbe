package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/channelscout/internal/domain"
)

const (
	sessionKeyPrefix     = "channelscout:session:"
	fingerprintKeyPrefix = "channelscout:session:fp:"
)

// RedisStore persists sessions in Redis with a TTL, so continuation state
// survives process restarts and is shared across instances.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. The client is owned by the
// caller.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get loads a session by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

// GetByFingerprint resolves the fingerprint index and loads the session.
func (s *RedisStore) GetByFingerprint(ctx context.Context, keyword, fingerprint string) (*domain.Session, error) {
	id, err := s.client.Get(ctx, fingerprintRedisKey(keyword, fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session fingerprint: %w", err)
	}
	return s.Get(ctx, id)
}

// Save upserts the session and its fingerprint index, refreshing both TTLs.
func (s *RedisStore) Save(ctx context.Context, session *domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, raw, s.ttl)
	pipe.Set(ctx, fingerprintRedisKey(session.Keyword, session.FiltersFingerprint), session.ID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

// Delete removes the session and its fingerprint index.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	pipe.Del(ctx, fingerprintRedisKey(session.Keyword, session.FiltersFingerprint))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// fingerprintRedisKey builds the index key for a (keyword, fingerprint) pair.
func fingerprintRedisKey(keyword, fingerprint string) string {
	return fingerprintKeyPrefix + keyword + ":" + fingerprint
}
