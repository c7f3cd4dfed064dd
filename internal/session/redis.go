package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares one login between processes and machines through Redis.
// The key expires together with the token.
type RedisStore struct {
	client  *redis.Client
	profile string
	now     func() time.Time
}

// NewRedisStore creates a RedisStore from a Redis URL.
func NewRedisStore(redisURL, profile string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts), profile: profile, now: time.Now}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context) (*Credentials, bool, error) {
	val, err := s.client.Get(ctx, CredentialsKey(s.profile)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var creds Credentials
	if err := json.Unmarshal(val, &creds); err != nil {
		return nil, false, fmt.Errorf("decoding session: %w", err)
	}
	return &creds, true, nil
}

func (s *RedisStore) Save(ctx context.Context, creds *Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	var ttl time.Duration
	if !creds.ExpiresAt.IsZero() {
		ttl = creds.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return s.Clear(ctx)
		}
	}
	return s.client.Set(ctx, CredentialsKey(s.profile), data, ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, CredentialsKey(s.profile)).Err()
}

var _ TokenStore = (*RedisStore)(nil)
