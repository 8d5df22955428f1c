package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/redaction"
)

// minSecretLength is the shortest trimmed value accepted for a required secret.
const minSecretLength = 10

type LLMConfig struct {
	Provider        string `json:"provider" label:"Provider" env:"PICOCAST_LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey    string `json:"openai_api_key" label:"OpenAI API Key" env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `json:"anthropic_api_key" label:"Anthropic API Key" env:"ANTHROPIC_API_KEY"`
	BaseURL         string `json:"base_url" label:"Base URL" env:"PICOCAST_LLM_BASE_URL"`
}

type SpeechConfig struct {
	Key      string `json:"key" label:"Speech Key" env:"AZURE_SPEECH_KEY"`
	Region   string `json:"region" label:"Speech Region" env:"AZURE_SPEECH_REGION"`
	Endpoint string `json:"endpoint" label:"Endpoint Override" env:"PICOCAST_SPEECH_ENDPOINT"`
}

type LimitsConfig struct {
	MaxTextLength      int `json:"max_text_length" label:"Max Text Length" env:"PICOCAST_MAX_TEXT_LENGTH" envDefault:"50000"`
	MaxSynthesisLength int `json:"max_synthesis_length" label:"Max Synthesis Length" env:"PICOCAST_MAX_SYNTHESIS_LENGTH" envDefault:"10000"`
	CharsPerToken      int `json:"chars_per_token" label:"Chars Per Token" env:"PICOCAST_CHARS_PER_TOKEN" envDefault:"4"`
	ContextTokens      int `json:"context_tokens" label:"Context Tokens" env:"PICOCAST_CONTEXT_TOKENS" envDefault:"4000"`
	MaxFileSize        int `json:"max_file_size" label:"Max File Size" env:"PICOCAST_MAX_FILE_SIZE" envDefault:"10485760"`
	MaxParagraphs      int `json:"max_paragraphs" label:"Max Paragraphs" env:"PICOCAST_MAX_PARAGRAPHS" envDefault:"50"`
}

type ServerConfig struct {
	Addr          string `json:"addr" label:"Listen Address" env:"PICOCAST_SERVER_ADDR" envDefault:"127.0.0.1:8088"`
	APIKey        string `json:"api_key" label:"API Key" env:"PICOCAST_SERVER_API_KEY"`
	RunsPerMinute int    `json:"runs_per_minute" label:"Runs Per Minute" env:"PICOCAST_RUNS_PER_MINUTE" envDefault:"10"` // 0 = unlimited
}

type LogConfig struct {
	Level string `json:"level" label:"Level" env:"LOG_LEVEL" envDefault:"info"`
	File  string `json:"file" label:"File" env:"PICOCAST_LOG_FILE"`
}

// Config is built once at process start and must not be mutated afterwards.
// Every component receives it explicitly; it is safe for concurrent reads.
type Config struct {
	LLM    LLMConfig    `json:"llm" label:"LLM"`
	Speech SpeechConfig `json:"speech" label:"Speech"`
	Limits LimitsConfig `json:"limits" label:"Limits"`
	Server ServerConfig `json:"server" label:"Server"`
	Log    LogConfig    `json:"log" label:"Logging"`

	models ProviderModels
	voices []Voice
}

// Load reads an optional dotenv file (missing files are ignored, existing
// environment variables win) and then builds the configuration from the
// process environment.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, failure.Configuration("config", "failed to read %s: %v", dotenvPath, err)
		}
	}
	return parse(env.Options{})
}

// FromMap builds the configuration from environ instead of the process environment.
func FromMap(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, failure.Configuration("config", "invalid environment: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	models, ok := LookupProvider(c.LLM.Provider)
	if !ok {
		return failure.Configuration("config", "unsupported LLM provider %q (supported: %s)",
			c.LLM.Provider, strings.Join(ProviderNames(), ", "))
	}
	c.models = models
	c.voices = DefaultVoices()

	var err error
	switch c.LLM.Provider {
	case ProviderAnthropic:
		c.LLM.AnthropicAPIKey, err = requiredSecret("ANTHROPIC_API_KEY", c.LLM.AnthropicAPIKey)
	default:
		c.LLM.OpenAIAPIKey, err = requiredSecret("OPENAI_API_KEY", c.LLM.OpenAIAPIKey)
	}
	if err != nil {
		return err
	}
	if c.Speech.Key, err = requiredSecret("AZURE_SPEECH_KEY", c.Speech.Key); err != nil {
		return err
	}
	if c.Speech.Region, err = requiredSecret("AZURE_SPEECH_REGION", c.Speech.Region); err != nil {
		return err
	}

	limits := []struct {
		name  string
		value int
	}{
		{"PICOCAST_MAX_TEXT_LENGTH", c.Limits.MaxTextLength},
		{"PICOCAST_MAX_SYNTHESIS_LENGTH", c.Limits.MaxSynthesisLength},
		{"PICOCAST_CHARS_PER_TOKEN", c.Limits.CharsPerToken},
		{"PICOCAST_CONTEXT_TOKENS", c.Limits.ContextTokens},
		{"PICOCAST_MAX_FILE_SIZE", c.Limits.MaxFileSize},
		{"PICOCAST_MAX_PARAGRAPHS", c.Limits.MaxParagraphs},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return failure.Configuration("config", "invalid %s: must be positive, got %d", l.name, l.value)
		}
	}
	if c.Server.RunsPerMinute < 0 {
		return failure.Configuration("config", "invalid PICOCAST_RUNS_PER_MINUTE: must not be negative")
	}
	return nil
}

func requiredSecret(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", failure.Configuration("config", "Missing required environment variable: %s", key)
	}
	if len(value) < minSecretLength {
		return "", failure.Configuration("config", "Invalid %s: too short", key)
	}
	return value, nil
}

// LLMAPIKey returns the credential for the configured provider.
func (c *Config) LLMAPIKey() string {
	if c.LLM.Provider == ProviderAnthropic {
		return c.LLM.AnthropicAPIKey
	}
	return c.LLM.OpenAIAPIKey
}

// Models returns the allow-listed models of the configured provider.
func (c *Config) Models() []string {
	return append([]string(nil), c.models.Models...)
}

// DefaultModel is the model substituted for unrecognized requests.
func (c *Config) DefaultModel() string {
	return c.models.DefaultModel
}

// IsSupportedModel reports whether model is allow-listed for the configured provider.
func (c *Config) IsSupportedModel(model string) bool {
	for _, m := range c.models.Models {
		if m == model {
			return true
		}
	}
	return false
}

// Voices returns the allow-listed voice catalogue.
func (c *Config) Voices() []Voice {
	return append([]Voice(nil), c.voices...)
}

// IsSupportedVoice reports whether name is in the voice catalogue.
func (c *Config) IsSupportedVoice(name string) bool {
	_, ok := c.Voice(name)
	return ok
}

// Voice looks up a catalogue entry by name.
func (c *Config) Voice(name string) (Voice, bool) {
	for _, v := range c.voices {
		if v.Name == name {
			return v, true
		}
	}
	return Voice{}, false
}

// Summary returns the configuration with secrets masked, for logs and "config show".
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"llm_provider":         c.LLM.Provider,
		"llm_key":              redaction.Mask(c.LLMAPIKey()),
		"llm_base_url":         c.LLM.BaseURL,
		"default_model":        c.DefaultModel(),
		"speech_region":        c.Speech.Region,
		"speech_endpoint":      c.Speech.Endpoint,
		"max_text_length":      c.Limits.MaxTextLength,
		"max_synthesis_length": c.Limits.MaxSynthesisLength,
		"chars_per_token":      c.Limits.CharsPerToken,
		"server_addr":          c.Server.Addr,
		"runs_per_minute":      c.Server.RunsPerMinute,
	}
}
