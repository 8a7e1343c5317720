package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisEntry is Entry's wire shape for the Redis list backend.
type redisEntry struct {
	Content    string    `json:"content"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Timestamp  time.Time `json:"timestamp"`
	IsBot      bool      `json:"is_bot"`
	Source     string    `json:"source"`
}

// RedisRing is the external C6 backend selected by cache_mode=redis: one
// Redis list per channel, capped with LTRIM and expired with the same
// staleness horizon the in-memory Ring enforces on read. Any client error
// falls back to an in-memory Ring for that call and logs a warning, per
// §6's "if external unavailable, fall back to in-memory with a warning"
// rule — the fallback ring is never synced back from Redis, so once Redis
// recovers its view may lag until new messages arrive.
type RedisRing struct {
	client    *redis.Client
	fallback  *Ring
	logger    *zap.Logger
	maxLocal  int
	staleness time.Duration
}

func NewRedisRing(client *redis.Client, maxLocal int, staleness time.Duration, logger *zap.Logger) *RedisRing {
	if maxLocal <= 0 {
		maxLocal = defaultMaxLocal
	}
	if staleness <= 0 {
		staleness = 15 * time.Minute
	}
	return &RedisRing{
		client:    client,
		fallback:  NewRing(maxLocal, staleness),
		logger:    logger,
		maxLocal:  maxLocal,
		staleness: staleness,
	}
}

func (r *RedisRing) key(channelID string) string { return "conv:ring:" + channelID }

func (r *RedisRing) warn(op string, err error) {
	if r.logger != nil {
		r.logger.Warn("cache: redis backend unavailable, falling back to in-memory", zap.String("op", op), zap.Error(err))
	}
}

func (r *RedisRing) Append(channelID string, e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	data, err := json.Marshal(redisEntry{
		Content: e.Content, AuthorID: e.AuthorID, AuthorName: e.AuthorName,
		Timestamp: e.Timestamp, IsBot: e.IsBot, Source: e.Source,
	})
	if err != nil {
		r.warn("append", err)
		r.fallback.Append(channelID, e)
		return
	}

	key := r.key(channelID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-r.maxLocal), -1)
	pipe.Expire(ctx, key, r.staleness)
	if _, err := pipe.Exec(ctx); err != nil {
		r.warn("append", err)
		r.fallback.Append(channelID, e)
	}
}

func (r *RedisRing) GetUserContext(channelID, userID string, limit int, excludeMessageID string) []Entry {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	raw, err := r.client.LRange(ctx, r.key(channelID), 0, -1).Result()
	if err != nil {
		r.warn("get_user_context", err)
		return r.fallback.GetUserContext(channelID, userID, limit, excludeMessageID)
	}

	cutoff := time.Now().Add(-r.staleness)
	filtered := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var re redisEntry
		if err := json.Unmarshal([]byte(item), &re); err != nil {
			continue
		}
		if re.Timestamp.Before(cutoff) {
			continue
		}
		if re.AuthorID != userID && !re.IsBot {
			continue
		}
		filtered = append(filtered, Entry{
			Content: re.Content, AuthorID: re.AuthorID, AuthorName: re.AuthorName,
			Timestamp: re.Timestamp, IsBot: re.IsBot, Source: re.Source,
		})
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

func (r *RedisRing) Clear(channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := r.client.Del(ctx, r.key(channelID)).Err(); err != nil {
		r.warn("clear", err)
	}
	r.fallback.Clear(channelID)
}

func (r *RedisRing) SyncWithStorage(channelID string, persistSucceeded bool) {
	r.fallback.SyncWithStorage(channelID, persistSucceeded)
}

// NewConversationCache selects the C6 backend per §6's cache_mode
// configuration key: "redis" builds a RedisRing against host:port, any
// other value (including empty) keeps the in-memory Ring. A nil redis
// client or a connection probe failure both fall back to in-memory with a
// warning rather than failing startup.
func NewConversationCache(mode string, client *redis.Client, maxLocal int, staleness time.Duration, logger *zap.Logger) ConversationCache {
	if mode != "redis" || client == nil {
		return NewRing(maxLocal, staleness)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if logger != nil {
			logger.Warn("cache: redis ping failed at startup, falling back to in-memory", zap.Error(err))
		}
		return NewRing(maxLocal, staleness)
	}
	return NewRedisRing(client, maxLocal, staleness, logger)
}
