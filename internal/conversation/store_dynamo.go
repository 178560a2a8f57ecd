package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// stateRecord is the table item. The table's TTL attribute is expiresAt.
type stateRecord struct {
	State
	ExpiresAt int64 `dynamodbav:"expiresAt,omitempty"`
}

// DynamoStateStore persists state to a DynamoDB table keyed by conversationId.
type DynamoStateStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
	logger    *logging.Logger
}

// NewDynamoStateStore builds a store backed by the provided DynamoDB client.
func NewDynamoStateStore(client dynamoAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoStateStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStateStore{client: client, tableName: tableName, ttl: ttl, now: time.Now, logger: logger}
}

func (s *DynamoStateStore) Save(ctx context.Context, state State) error {
	item, err := attributevalue.MarshalMap(stateRecord{
		State:     state,
		ExpiresAt: s.now().Add(s.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

// Load treats items past expiresAt as missing; DynamoDB deletes expired items lazily.
func (s *DynamoStateStore) Load(ctx context.Context, conversationID string) (State, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return State{}, fmt.Errorf("conversation: failed to fetch state: %w", err)
	}
	if out.Item == nil {
		return State{}, ErrConversationNotFound
	}

	var rec stateRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return State{}, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	if rec.ExpiresAt > 0 && rec.ExpiresAt < s.now().Unix() {
		s.logger.Debug("conversation state expired", "conversation_id", conversationID)
		return State{}, ErrConversationNotFound
	}
	return rec.State, nil
}
