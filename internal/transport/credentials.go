package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/openclaw/whatsapp-bridge-go/internal/redis"
)

// RedisCredentialStore keeps the transport credential blob in redis so the
// bridge can reconnect without re-pairing after a restart.
type RedisCredentialStore struct {
	client *redisclient.Client
	key    string
}

func NewRedisCredentialStore(client *redisclient.Client, driver string) *RedisCredentialStore {
	return &RedisCredentialStore{
		client: client,
		key:    redisclient.CredentialsKey(driver),
	}
}

func (s *RedisCredentialStore) Exists(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		return false, fmt.Errorf("credentials exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisCredentialStore) Load(ctx context.Context) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credentials load: %w", err)
	}
	return blob, nil
}

func (s *RedisCredentialStore) Save(ctx context.Context, blob []byte) error {
	if err := s.client.Set(ctx, s.key, blob, 0).Err(); err != nil {
		return fmt.Errorf("credentials save: %w", err)
	}
	return nil
}

func (s *RedisCredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("credentials clear: %w", err)
	}
	return nil
}

// MemoryCredentialStore is a CredentialStore for tests and the loopback
// driver.
type MemoryCredentialStore struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (s *MemoryCredentialStore) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blob != nil, nil
}

func (s *MemoryCredentialStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blob, nil
}

func (s *MemoryCredentialStore) Save(ctx context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = blob
	return nil
}

func (s *MemoryCredentialStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = nil
	return nil
}
