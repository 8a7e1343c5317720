package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if it still holds this holder's
// token, so a slow caller can never release a lock another caller has since
// acquired. Same Eval idiom as the teacher's redis OTP rate limiter.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ConversationLock serializes per-conversation scatter-gather runs (P9): two
// inbound messages on the same conversation must not race each other's
// reads of relationship state / recent turns.
type ConversationLock interface {
	// Acquire blocks (bounded by ctx) until the lock is held, returning a
	// release func. Callers must always call the release func.
	Acquire(ctx context.Context, conversationID string, ttl time.Duration) (release func(), err error)
}

// RedisLock implements ConversationLock with Redis SET NX PX plus a
// token-checked DEL release, falling back to nothing when client is nil
// (callers should wrap with InMemoryLock in that case).
type RedisLock struct {
	client *redis.Client
	prefix string
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client, prefix: "conv:lock:"}
}

func (l *RedisLock) Acquire(ctx context.Context, conversationID string, ttl time.Duration) (func(), error) {
	key := l.prefix + conversationID
	token := uuid.NewString()

	const pollInterval = 25 * time.Millisecond
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()
				l.client.Eval(releaseCtx, releaseScript, []string{key}, token)
			}
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// InMemoryLock is the single-process lock cmd/pipeline_chat uses when no
// Redis address is configured; it is not swapped in at runtime when a
// configured Redis is unreachable. Backed by a
// per-conversation mutex held in a map, matching the teacher's
// memoryRefreshTokenStore mutex+map shape.
type InMemoryLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewInMemoryLock() *InMemoryLock {
	return &InMemoryLock{locks: make(map[string]*sync.Mutex)}
}

func (l *InMemoryLock) Acquire(ctx context.Context, conversationID string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[conversationID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[conversationID] = m
	}
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return m.Unlock, nil
	case <-ctx.Done():
		// The goroutine above may still be blocked waiting for m.Lock(); once
		// it succeeds it will hold the mutex forever with no owner to release
		// it, so release it immediately on our behalf.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, ctx.Err()
	}
}
