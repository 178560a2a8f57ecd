package webchat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const transcriptTTL = 24 * time.Hour

// HistoryMessage is one line of a chat transcript.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// TranscriptStore keeps what was said in a conversation.
type TranscriptStore interface {
	Append(ctx context.Context, conversationID string, msg HistoryMessage) error
	List(ctx context.Context, conversationID string, limit int64) ([]HistoryMessage, error)
}

type nopTranscript struct{}

func (nopTranscript) Append(context.Context, string, HistoryMessage) error { return nil }

func (nopTranscript) List(context.Context, string, int64) ([]HistoryMessage, error) { return nil, nil }

// MemoryTranscript keeps transcripts in process.
type MemoryTranscript struct {
	mu    sync.Mutex
	store map[string][]HistoryMessage
}

func NewMemoryTranscript() *MemoryTranscript {
	return &MemoryTranscript{store: make(map[string][]HistoryMessage)}
}

func (m *MemoryTranscript) Append(_ context.Context, conversationID string, msg HistoryMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[conversationID] = append(m.store[conversationID], msg)
	return nil
}

// List returns the first limit messages in order.
func (m *MemoryTranscript) List(_ context.Context, conversationID string, limit int64) ([]HistoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.store[conversationID]
	if limit > 0 && int64(len(msgs)) > limit {
		msgs = msgs[:limit]
	}
	return append([]HistoryMessage(nil), msgs...), nil
}

// RedisTranscript keeps each transcript as a Redis list that expires with the conversation.
type RedisTranscript struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisTranscript(client *redis.Client, ttl time.Duration) *RedisTranscript {
	if client == nil {
		panic("webchat: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = transcriptTTL
	}
	return &RedisTranscript{redis: client, ttl: ttl}
}

func transcriptKey(conversationID string) string {
	return fmt.Sprintf("webchat:transcript:%s", conversationID)
}

func (t *RedisTranscript) Append(ctx context.Context, conversationID string, msg HistoryMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webchat: failed to marshal transcript message: %w", err)
	}
	key := transcriptKey(conversationID)
	pipe := t.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("webchat: failed to append transcript: %w", err)
	}
	return nil
}

func (t *RedisTranscript) List(ctx context.Context, conversationID string, limit int64) ([]HistoryMessage, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	raw, err := t.redis.LRange(ctx, transcriptKey(conversationID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("webchat: failed to load transcript: %w", err)
	}
	out := make([]HistoryMessage, 0, len(raw))
	for _, item := range raw {
		var msg HistoryMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
