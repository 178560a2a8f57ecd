package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/llm"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// BuildTextGenerator selects the provider that phrases display text. It
// returns nil when generation is disabled, so agents use scripted replies.
// Bedrock and Gemini back each other up when both are configured.
func BuildTextGenerator(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	bedrock := func() llm.Client {
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil
		}
		return llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	}
	gemini := func() (llm.Client, error) {
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, nil
		}
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	var primary, secondary llm.Client
	switch cfg.LLMProvider {
	case "", "none", "off":
		return nil, nil
	case "canned":
		logger.Info("using canned text generation")
		return llm.NewClientGenerator(llm.NewCannedClient(), "canned"), nil
	case "bedrock":
		primary = bedrock()
		if primary == nil {
			logger.Warn("bedrock selected but BEDROCK_MODEL_ID is empty; using scripted replies")
			return nil, nil
		}
		g, err := gemini()
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			secondary = g
		}
	case "gemini":
		g, err := gemini()
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		if g == nil {
			logger.Warn("gemini selected but GEMINI_API_KEY is empty; using scripted replies")
			return nil, nil
		}
		primary = g
		if b := bedrock(); b != nil {
			secondary = b
		}
	default:
		return nil, fmt.Errorf("bootstrap: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	logger.Info("text generation enabled", "provider", cfg.LLMProvider, "fallback", secondary != nil)
	return llm.NewClientGenerator(llm.NewFallbackClient(primary, secondary, logger), cfg.BedrockModelID), nil
}
