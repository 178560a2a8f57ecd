package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/records"
)

func sampleState() State {
	start := time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)
	return State{
		ConversationID: "c1",
		Step:           StepInsurance,
		Patient:        completeIdentity(),
		Insurance:      records.Insurance{Carrier: "Aetna"},
		Appointment: AppointmentInfo{
			PatientType:     "new",
			PatientID:       "p1",
			DurationMinutes: 60,
			AppointmentID:   "APT20250106ABC123",
			Doctor:          "Smith",
			Location:        "Downtown",
			Start:           &start,
		},
		UpdatedAt: time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStateStore(t *testing.T) {
	store := NewMemoryStateStore()
	_, err := store.Load(context.Background(), "c1")
	require.ErrorIs(t, err, ErrConversationNotFound)

	require.NoError(t, store.Save(context.Background(), sampleState()))
	got, err := store.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)
}

func TestRedisStateStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStateStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.Load(ctx, "c1")
	require.ErrorIs(t, err, ErrConversationNotFound)

	require.NoError(t, store.Save(ctx, sampleState()))
	assert.Equal(t, time.Hour, mr.TTL("conversation:c1"))

	got, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, sampleState().Appointment.AppointmentID, got.Appointment.AppointmentID)
	assert.True(t, sampleState().Appointment.Start.Equal(*got.Appointment.Start))
	assert.Equal(t, StepInsurance, got.Step)

	mr.FastForward(2 * time.Hour)
	_, err = store.Load(ctx, "c1")
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestRedisStateStoreCorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set("conversation:c1", "{not json"))

	_, err := NewRedisStateStore(client, 0).Load(context.Background(), "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConversationNotFound)
}

type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items == nil {
		f.items = map[string]map[string]types.AttributeValue{}
	}
	key := in.Item["conversationId"].(*types.AttributeValueMemberS).Value
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := in.Key["conversationId"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func TestDynamoStateStore(t *testing.T) {
	client := &fakeDynamo{}
	store := NewDynamoStateStore(client, "conversation_state", time.Hour, nil)
	now := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Load(ctx, "c1")
	require.ErrorIs(t, err, ErrConversationNotFound)

	require.NoError(t, store.Save(ctx, sampleState()))
	item := client.items["c1"]
	require.NotNil(t, item)
	assert.Equal(t, "1736067600", item["expiresAt"].(*types.AttributeValueMemberN).Value)

	got, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.Appointment.PatientID)
	assert.Equal(t, "John Smith", got.Patient.Name)
	assert.Equal(t, "Aetna", got.Insurance.Carrier)
	assert.True(t, sampleState().Appointment.Start.Equal(*got.Appointment.Start))

	now = now.Add(2 * time.Hour)
	_, err = store.Load(ctx, "c1")
	require.ErrorIs(t, err, ErrConversationNotFound)
}
