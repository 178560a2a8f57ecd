package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-intake/internal/availability"
	"github.com/wolfman30/clinic-intake/internal/redact"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Turn is the result of one message on a conversation.
type Turn struct {
	ConversationID string `json:"conversation_id"`
	Reply
	State State `json:"state"`
}

// Service loads, advances and saves conversations. Turns on the same
// conversation run one at a time.
type Service struct {
	orchestrator *Orchestrator
	store        StateStore
	locks        availability.Locker
	logger       *logging.Logger
}

func NewService(orchestrator *Orchestrator, store StateStore, logger *logging.Logger) *Service {
	if orchestrator == nil {
		panic("conversation: orchestrator cannot be nil")
	}
	if store == nil {
		store = NewMemoryStateStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{orchestrator: orchestrator, store: store, locks: availability.NewKeyedMutex(), logger: logger}
}

// WithLocker replaces the in-process lock, e.g. with a Redis lock when several
// API replicas share a state store.
func (s *Service) WithLocker(l availability.Locker) *Service {
	if l != nil {
		s.locks = l
	}
	return s
}

// Start opens a conversation and processes the optional first message.
func (s *Service) Start(ctx context.Context, text string) (Turn, error) {
	state := NewState(uuid.NewString())
	return s.advance(ctx, state, text)
}

// Message processes one patient message on an existing conversation.
func (s *Service) Message(ctx context.Context, conversationID, text string) (Turn, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return Turn{}, ErrConversationNotFound
	}
	unlock, err := s.locks.Lock(ctx, "conversation:"+conversationID)
	if err != nil {
		return Turn{}, fmt.Errorf("conversation: lock %s: %w", conversationID, err)
	}
	defer unlock()

	state, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return Turn{}, err
	}
	return s.advance(ctx, state, text)
}

// Get returns the stored state of a conversation.
func (s *Service) Get(ctx context.Context, conversationID string) (State, error) {
	return s.store.Load(ctx, conversationID)
}

func (s *Service) advance(ctx context.Context, state State, text string) (Turn, error) {
	next, reply, err := s.orchestrator.Handle(ctx, state, text)
	if err != nil {
		return Turn{}, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		s.logger.Error("failed to save conversation state", "conversation_id", next.ConversationID, "error", err)
		return Turn{}, err
	}
	s.logger.Debug("conversation turn",
		"conversation_id", next.ConversationID,
		"from", state.Step,
		"to", next.Step,
		"text", redact.Preview(text, 80),
	)
	return Turn{ConversationID: next.ConversationID, Reply: reply, State: next}, nil
}
