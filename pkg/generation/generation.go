// Package generation produces text from a validated prompt with a remote
// language model. Request parameters are clamped to safe values rather than
// rejected; only remote failures and unusable replies are errors.
package generation

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/security"
)

const (
	component = "generation"

	SystemPrompt = "You are a helpful assistant that creates engaging and informative content."

	MaxOutputTokens    = 4000
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
	MinTemperature     = 0.0
	MaxTemperature     = 2.0
	DefaultTimeout     = 30 * time.Second
)

// Completion is a single request handed to a Backend. All fields are already clamped.
type Completion struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Backend talks to one model provider.
type Backend interface {
	// Name is the provider's display name, used in error messages.
	Name() string
	// Complete returns the text of the first reply choice.
	Complete(ctx context.Context, c Completion) (string, error)
}

// Params are the caller-tunable settings of a generation request.
type Params struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type Client struct {
	backend       Backend
	cfg           *config.Config
	timeout       time.Duration
	maxTextLength int
}

type Option func(*Client)

// WithTimeout overrides the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewClient(cfg *config.Config, backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:       backend,
		cfg:           cfg,
		timeout:       DefaultTimeout,
		maxTextLength: cfg.Limits.MaxTextLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clamp replaces unsupported or out-of-range parameters with defaults.
func (c *Client) Clamp(p Params) Params {
	if !c.cfg.IsSupportedModel(p.Model) {
		p.Model = c.cfg.DefaultModel()
	}
	switch {
	case p.MaxTokens > MaxOutputTokens:
		p.MaxTokens = MaxOutputTokens
	case p.MaxTokens < 1:
		p.MaxTokens = DefaultMaxTokens
	}
	if math.IsNaN(p.Temperature) || p.Temperature < MinTemperature || p.Temperature > MaxTemperature {
		p.Temperature = DefaultTemperature
	}
	return p
}

// Generate sends prompt to the backend and returns the validated reply.
func (c *Client) Generate(ctx context.Context, prompt security.Text, p Params) (security.Text, error) {
	if prompt.IsZero() {
		return security.Text{}, failure.Security(component, "Invalid text input: must be a non-empty string")
	}
	p = c.Clamp(p)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logger.InfoCF(component, "Making API call", map[string]any{
		"provider":    c.backend.Name(),
		"model":       p.Model,
		"max_tokens":  p.MaxTokens,
		"temperature": p.Temperature,
		"prompt_len":  prompt.Len(),
	})

	start := time.Now()
	content, err := c.backend.Complete(ctx, Completion{
		Model:       p.Model,
		System:      SystemPrompt,
		Prompt:      prompt.String(),
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	})
	if err != nil {
		var fe *failure.Error
		if errors.As(err, &fe) {
			return security.Text{}, fe
		}
		logger.ErrorCF(component, "API call failed", map[string]any{
			"provider": c.backend.Name(),
			"error":    err.Error(),
		})
		return security.Text{}, failure.API(component, err, "%s API error", c.backend.Name())
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return security.Text{}, failure.API(component, nil, "Empty response from %s", c.backend.Name())
	}

	logger.DebugCF(component, "API call completed", map[string]any{
		"provider":    c.backend.Name(),
		"duration_ms": time.Since(start).Milliseconds(),
		"reply_len":   len(content),
	})
	return security.Validate(content, c.maxTextLength)
}
