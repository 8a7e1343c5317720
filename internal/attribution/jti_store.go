package attribution

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// JTIStore tracks spent attribution-token IDs for replay protection.
// Same interface shape as the teacher's RefreshTokenStore, repurposed from
// "store a refresh token so it CAN be redeemed" to "mark a token spent so it
// CANNOT be redeemed again".
type JTIStore interface {
	MarkSpent(jti string, ttl time.Duration) error
	Exists(jti string) (bool, error)
}

// MemoryJTIStore is an in-process fallback, same mutex+map shape as the
// teacher's memoryRefreshTokenStore.
type MemoryJTIStore struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewMemoryJTIStore() *MemoryJTIStore {
	return &MemoryJTIStore{items: make(map[string]time.Time)}
}

func (s *MemoryJTIStore) MarkSpent(jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	s.items[jti] = time.Now().UTC().Add(ttl)
	return nil
}

func (s *MemoryJTIStore) Exists(jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[jti]
	if !ok {
		return false, nil
	}
	if time.Now().UTC().After(exp) {
		delete(s.items, jti)
		return false, nil
	}
	return true, nil
}

// RedisJTIStore backs replay protection with Redis so it works across
// multiple orchestrator instances.
type RedisJTIStore struct {
	client *redis.Client
	prefix string
}

func NewRedisJTIStore(client *redis.Client) *RedisJTIStore {
	return &RedisJTIStore{client: client, prefix: "attribution:spent:"}
}

func (s *RedisJTIStore) MarkSpent(jti string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+jti, "1", ttl).Err()
}

func (s *RedisJTIStore) Exists(jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	n, err := s.client.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
