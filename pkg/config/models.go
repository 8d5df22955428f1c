package config

import "sort"

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContextSize int    `json:"context_size"`
}

// ProviderModels is the allow-list of one generation backend.
type ProviderModels struct {
	Provider     string
	DefaultModel string
	Models       []string
	Info         []ModelInfo
}

var ProviderModelsList = []ProviderModels{
	{
		Provider:     ProviderOpenAI,
		DefaultModel: "gpt-4o-mini",
		Models:       []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"},
		Info: []ModelInfo{
			{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000},
			{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextSize: 128000},
			{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000},
			{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextSize: 16385},
		},
	},
	{
		Provider:     ProviderAnthropic,
		DefaultModel: "claude-3-5-haiku-latest",
		Models: []string{
			"claude-3-5-haiku-latest",
			"claude-3-5-sonnet-latest",
			"claude-3-7-sonnet-latest",
			"claude-sonnet-4-0",
		},
		Info: []ModelInfo{
			{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", ContextSize: 200000},
			{ID: "claude-3-5-sonnet-latest", Name: "Claude 3.5 Sonnet", ContextSize: 200000},
			{ID: "claude-3-7-sonnet-latest", Name: "Claude 3.7 Sonnet", ContextSize: 200000},
			{ID: "claude-sonnet-4-0", Name: "Claude Sonnet 4", ContextSize: 200000},
		},
	},
}

func LookupProvider(name string) (ProviderModels, bool) {
	for _, p := range ProviderModelsList {
		if p.Provider == name {
			return p, true
		}
	}
	return ProviderModels{}, false
}

func ProviderNames() []string {
	names := make([]string, 0, len(ProviderModelsList))
	for _, p := range ProviderModelsList {
		names = append(names, p.Provider)
	}
	sort.Strings(names)
	return names
}

// ModelInfoFor returns catalogue details for a model of the configured provider.
func (c *Config) ModelInfoFor(id string) (ModelInfo, bool) {
	for _, info := range c.models.Info {
		if info.ID == id {
			return info, true
		}
	}
	return ModelInfo{}, false
}
