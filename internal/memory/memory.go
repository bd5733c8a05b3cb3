// Package memory stores per-conversation chat history so follow-up questions
// can carry the earlier turns. Two backends exist: an in-process map for
// single-instance deployments and Redis for anything shared.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/azomlabs/supportd/config"
)

// Turn is one exchange stored in a conversation history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CarModel  string    `json:"car_model,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists conversation turns keyed by conversation ID.
type Store interface {
	// Append records a turn and prunes the history beyond the store's cap.
	Append(ctx context.Context, conversationID string, turn Turn) error
	// History returns the stored turns, oldest first.
	History(ctx context.Context, conversationID string) ([]Turn, error)
	Close() error
}

// NewStore builds the store named by cfg.Backend.
func NewStore(cfg config.MemoryConfig) (Store, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 20
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "inmemory":
		return NewInMemoryStore(ttl, maxHistory), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisStore(rdb, ttl, maxHistory), nil
	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", cfg.Backend)
	}
}
