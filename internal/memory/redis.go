package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each conversation as a Redis list of JSON-encoded turns,
// newest at the head, trimmed to the history cap and expired by TTL.
type RedisStore struct {
	rdb        *redis.Client
	ttl        time.Duration
	maxHistory int
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, maxHistory int) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, maxHistory: maxHistory}
}

func (s *RedisStore) key(conversationID string) string {
	return "supportd:conversation:" + conversationID
}

func (s *RedisStore) Append(ctx context.Context, conversationID string, turn Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := s.key(conversationID)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(s.maxHistory-1))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, conversationID string) ([]Turn, error) {
	raw, err := s.rdb.LRange(ctx, s.key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	// Stored newest first; reverse into chronological order.
	turns := make([]Turn, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var t Turn
		if err := json.Unmarshal([]byte(raw[i]), &t); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
