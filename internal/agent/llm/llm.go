package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/wayfarer-planner/server/internal/agent/model"
	errx "github.com/wayfarer-planner/server/internal/core/error"
	logx "github.com/wayfarer-planner/server/pkg/logger"
)

// NewChatModel builds the tool-calling chat model selected by cfg.Provider. A missing or
// placeholder credential yields a config error naming the env variable to set.
func NewChatModel(ctx context.Context, cfg model.ModelConfig) (einomodel.ToolCallingChatModel, error) {
	key, envName := cfg.ResolvedAPIKey()
	if !model.CredentialConfigured(key) {
		return nil, errx.Config("%s not configured", envName)
	}

	switch p := cfg.ResolvedProvider(); p {
	case model.ProviderGemini:
		return newGemini(ctx, cfg, key)
	case model.ProviderOpenAI:
		return newOpenAI(ctx, cfg, key)
	case model.ProviderAnthropic:
		return NewAnthropicChatModel(AnthropicConfig{
			APIKey:      key,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.ResolvedModel(),
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
	default:
		return nil, errx.Config("unsupported MODEL_PROVIDER %q", p)
	}
}

func newGemini(ctx context.Context, cfg model.ModelConfig, key string) (einomodel.ToolCallingChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	gcfg := &gemini.Config{
		Client:      client,
		Model:       cfg.ResolvedModel(),
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
	}
	if cfg.ThinkingBudget > 0 {
		gcfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(cfg.ThinkingBudget),
		}
	}

	cm, err := gemini.NewChatModel(ctx, gcfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini model")
		return nil, fmt.Errorf("error creating Gemini model: %w", err)
	}
	return cm, nil
}

func newOpenAI(ctx context.Context, cfg model.ModelConfig, key string) (einomodel.ToolCallingChatModel, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      key,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.ResolvedModel(),
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating OpenAI model")
		return nil, fmt.Errorf("error creating OpenAI model: %w", err)
	}
	return cm, nil
}
