package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const defaultStateTTL = 24 * time.Hour

// RedisStateStore keeps state as JSON under conversation:<id> with a sliding TTL.
type RedisStateStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &RedisStateStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisStateStore) Save(ctx context.Context, state State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_state")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, conversationKey(state.ConversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Load(ctx context.Context, conversationID string) (State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, conversationKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, ErrConversationNotFound
		}
		span.RecordError(err)
		return State{}, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return State{}, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return state, nil
}

func conversationKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}
