package llm

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Generator produces display text for a role prompt and the patient's words.
// Its output never drives routing.
type Generator interface {
	Generate(ctx context.Context, rolePrompt, userText string) (string, error)
}

// NopGenerator never produces text, so callers always use their scripted reply.
type NopGenerator struct{}

func (NopGenerator) Generate(context.Context, string, string) (string, error) {
	return "", nil
}

const (
	defaultMaxTokens   = 300
	defaultTemperature = 0.1
)

// ClientGenerator adapts a chat Client into a Generator.
type ClientGenerator struct {
	client      Client
	model       string
	maxTokens   int32
	temperature float32
}

// NewClientGenerator builds a generator that sends one system and one user message.
func NewClientGenerator(client Client, model string) *ClientGenerator {
	if client == nil {
		panic("llm: client cannot be nil")
	}
	return &ClientGenerator{client: client, model: model, maxTokens: defaultMaxTokens, temperature: defaultTemperature}
}

func (g *ClientGenerator) Generate(ctx context.Context, rolePrompt, userText string) (string, error) {
	resp, err := g.client.Complete(ctx, Request{
		Model:       g.model,
		System:      []string{rolePrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: userText}},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Responder runs a Generator under a deadline and falls back to scripted text.
type Responder struct {
	gen     Generator
	timeout time.Duration
	logger  *logging.Logger
}

// NewResponder wraps gen; a nil gen always yields the scripted reply.
func NewResponder(gen Generator, timeout time.Duration, logger *logging.Logger) *Responder {
	if gen == nil {
		gen = NopGenerator{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{gen: gen, timeout: timeout, logger: logger}
}

// Reply returns generated text, or scripted when generation fails, times out or is empty.
func (r *Responder) Reply(ctx context.Context, rolePrompt, userText, scripted string) string {
	if r == nil {
		return scripted
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := r.gen.Generate(ctx, rolePrompt, userText)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("text generation timed out, using scripted reply", "error", ctx.Err())
		return scripted
	case res := <-done:
		if res.err != nil {
			r.logger.Warn("text generation failed, using scripted reply", "error", res.err)
			return scripted
		}
		if text := strings.TrimSpace(res.text); text != "" {
			return text
		}
		return scripted
	}
}
