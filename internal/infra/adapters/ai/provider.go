package ai

import (
	"context"
	"errors"

	"ai-request-orchestrator/internal/config"
	"ai-request-orchestrator/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// NewProcessorFromConfig picks the first configured provider
// (OpenAI -> Gemini). Dev mode without keys falls back to the echo processor.
func NewProcessorFromConfig(ctx context.Context, cfg *config.AIConfig, dev bool, logger *zerolog.Logger) (adapter.Processor, error) {
	switch {
	case cfg.OpenAIKey != "":
		logger.Info().Str("provider", "openai").Str("model", cfg.DefaultModel).Msg("processor configured")
		return NewOpenAIProcessor(cfg.OpenAIKey, cfg.DefaultModel)
	case cfg.GeminiKey != "":
		logger.Info().Str("provider", "gemini").Str("model", cfg.DefaultModel).Msg("processor configured")
		return NewGeminiProcessor(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.DefaultModel, cfg.MaxOutput)
	case dev:
		logger.Warn().Msg("no AI provider configured, using echo processor (dev mode)")
		return NewNoopProcessor(), nil
	default:
		return nil, errors.New("no AI provider configured: set ai.openai_key or ai.gemini_key")
	}
}
