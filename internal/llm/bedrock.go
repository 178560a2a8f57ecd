package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient completes chats through the Bedrock Converse API.
type BedrockClient struct {
	api bedrockConverseAPI
}

func NewBedrockClient(api bedrockConverseAPI) *BedrockClient {
	if api == nil {
		panic("llm: bedrock converse client cannot be nil")
	}
	return &BedrockClient{api: api}
}

func (c *BedrockClient) Complete(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Model) == "" {
		return Response{}, errors.New("llm: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		var role brtypes.ConversationRole
		switch msg.Role {
		case ChatRoleSystem:
			systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: content})
			continue
		case ChatRoleUser:
			role = brtypes.ConversationRoleUser
		case ChatRoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return Response{}, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
		})
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// negative temperature means provider default
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP != 0 {
		inference.TopP = aws.Float32(req.TopP)
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.Model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	})
	if err != nil {
		return Response{}, fmt.Errorf("llm: bedrock converse: %w", err)
	}

	text, err := bedrockOutputText(out)
	if err != nil {
		return Response{}, err
	}
	resp := Response{Text: strings.TrimSpace(text), StopReason: string(out.StopReason)}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  aws.ToInt32(out.Usage.InputTokens),
			OutputTokens: aws.ToInt32(out.Usage.OutputTokens),
			TotalTokens:  aws.ToInt32(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("llm: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("llm: bedrock response did not include a message output")
	}
	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	if strings.TrimSpace(builder.String()) == "" {
		return "", errors.New("llm: bedrock response contained no text content blocks")
	}
	return builder.String(), nil
}
