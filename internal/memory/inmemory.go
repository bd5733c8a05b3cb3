package memory

import (
	"context"
	"sync"
	"time"
)

type conversation struct {
	turns     []Turn
	expiresAt time.Time
}

// InMemoryStore keeps histories in a mutex-guarded map. Expired conversations
// are dropped lazily on access.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	ttl           time.Duration
	maxHistory    int
}

func NewInMemoryStore(ttl time.Duration, maxHistory int) *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*conversation),
		ttl:           ttl,
		maxHistory:    maxHistory,
	}
}

func (s *InMemoryStore) Append(_ context.Context, conversationID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok || time.Now().After(conv.expiresAt) {
		conv = &conversation{}
		s.conversations[conversationID] = conv
	}
	conv.turns = append(conv.turns, turn)
	if len(conv.turns) > s.maxHistory {
		conv.turns = conv.turns[len(conv.turns)-s.maxHistory:]
	}
	conv.expiresAt = time.Now().Add(s.ttl)
	return nil
}

func (s *InMemoryStore) History(_ context.Context, conversationID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(conv.expiresAt) {
		delete(s.conversations, conversationID)
		return nil, nil
	}
	out := make([]Turn, len(conv.turns))
	copy(out, conv.turns)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
