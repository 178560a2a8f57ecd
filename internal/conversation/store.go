package conversation

import (
	"context"
	"errors"
	"sync"
)

// ErrConversationNotFound indicates the requested conversation does not exist or expired.
var ErrConversationNotFound = errors.New("conversation: conversation not found")

// StateStore persists conversation state between turns.
type StateStore interface {
	Load(ctx context.Context, conversationID string) (State, error)
	Save(ctx context.Context, state State) error
}

// MemoryStateStore keeps state in process. It is the default for local runs and tests.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]State)}
}

func (s *MemoryStateStore) Load(_ context.Context, conversationID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[conversationID]
	if !ok {
		return State{}, ErrConversationNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Save(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ConversationID] = state
	return nil
}
