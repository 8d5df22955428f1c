// Package provider selects the generation backend named by the configuration.
package provider

import (
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/generation"
	anthropicprovider "github.com/sipeed/picocast/pkg/generation/anthropic"
	openaiprovider "github.com/sipeed/picocast/pkg/generation/openai"
)

func New(cfg *config.Config) (generation.Backend, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return openaiprovider.NewProvider(cfg.LLM.OpenAIAPIKey, cfg.LLM.BaseURL), nil
	case config.ProviderAnthropic:
		return anthropicprovider.NewProvider(cfg.LLM.AnthropicAPIKey, cfg.LLM.BaseURL), nil
	default:
		return nil, failure.Configuration("generation", "unsupported LLM provider %q", cfg.LLM.Provider)
	}
}
