package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Client using Google's Gemini API.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a Gemini client for the given model.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelID: modelID}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("llm: gemini requires at least one message")
	}
	model := c.client.GenerativeModel(c.modelID)
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if system := strings.TrimSpace(strings.Join(req.System, "\n\n")); system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	cs := model.StartChat()
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == ChatRoleSystem {
			continue
		}
		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(content)}})
	}

	last := req.Messages[len(req.Messages)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return Response{}, fmt.Errorf("llm: gemini completion: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, errors.New("llm: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	out := Response{Text: strings.TrimSpace(text.String()), StopReason: candidate.FinishReason.String()}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
