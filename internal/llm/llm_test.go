package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	return f.out, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(5), TotalTokens: aws.Int32(15)},
	}
}

func TestBedrockClientComplete(t *testing.T) {
	api := &fakeConverse{out: textOutput("  Hello there!  ")}
	client := NewBedrockClient(api)

	resp, err := client.Complete(context.Background(), Request{
		Model:    "anthropic.test",
		System:   []string{"be kind", " "},
		Messages: []ChatMessage{{Role: ChatRoleSystem, Content: "extra"}, {Role: ChatRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", resp.Text)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)
	assert.Len(t, api.input.System, 2)
	assert.Len(t, api.input.Messages, 1)
	assert.Equal(t, "anthropic.test", aws.ToString(api.input.ModelId))
}

func TestBedrockClientErrors(t *testing.T) {
	_, err := NewBedrockClient(&fakeConverse{}).Complete(context.Background(), Request{})
	assert.Error(t, err)

	_, err = NewBedrockClient(&fakeConverse{}).Complete(context.Background(), Request{
		Model: "m", Messages: []ChatMessage{{Role: "tool", Content: "x"}},
	})
	assert.Error(t, err)

	_, err = NewBedrockClient(&fakeConverse{err: errors.New("throttled")}).Complete(context.Background(), Request{Model: "m"})
	assert.ErrorContains(t, err, "throttled")
}

type stubClient struct {
	text  string
	err   error
	calls int
}

func (s *stubClient) Complete(context.Context, Request) (Response, error) {
	s.calls++
	return Response{Text: s.text}, s.err
}

func TestFallbackClient(t *testing.T) {
	primary := &stubClient{err: errors.New("down")}
	secondary := &stubClient{text: "from fallback"}
	resp, err := NewFallbackClient(primary, secondary, nil).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Text)
	assert.Equal(t, 1, primary.calls)

	_, err = NewFallbackClient(primary, nil, nil).Complete(context.Background(), Request{})
	assert.EqualError(t, err, "down")
}

type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestResponderFallsBackToScripted(t *testing.T) {
	ctx := context.Background()

	r := NewResponder(NewClientGenerator(&stubClient{text: "generated"}, "m"), time.Second, nil)
	assert.Equal(t, "generated", r.Reply(ctx, "role", "hi", "scripted"))

	r = NewResponder(NewClientGenerator(&stubClient{err: errors.New("boom")}, "m"), time.Second, nil)
	assert.Equal(t, "scripted", r.Reply(ctx, "role", "hi", "scripted"))

	r = NewResponder(blockingGenerator{}, 20*time.Millisecond, nil)
	assert.Equal(t, "scripted", r.Reply(ctx, "role", "hi", "scripted"))

	r = NewResponder(nil, 0, nil)
	assert.Equal(t, "scripted", r.Reply(ctx, "role", "hi", "scripted"))

	var nilResponder *Responder
	assert.Equal(t, "scripted", nilResponder.Reply(ctx, "role", "hi", "scripted"))
}
