package anthropicprovider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sipeed/picocast/pkg/generation"
)

const (
	defaultBaseURL        = "https://api.anthropic.com"
	defaultRequestTimeout = 60 * time.Second

	// maxTemperature is the upper bound of the Messages API.
	maxTemperature = 1.0
)

type Provider struct {
	client  *anthropic.Client
	baseURL string
}

func NewProvider(apiKey, apiBase string) *Provider {
	baseURL := normalizeBaseURL(apiBase)
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: defaultRequestTimeout}),
		option.WithMaxRetries(0),
	)
	return &Provider{client: &client, baseURL: baseURL}
}

func (p *Provider) Name() string { return "Anthropic" }

func (p *Provider) BaseURL() string { return p.baseURL }

func (p *Provider) Complete(ctx context.Context, c generation.Completion) (string, error) {
	resp, err := p.client.Messages.New(ctx, buildParams(c))
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.AsText().Text)
		}
	}
	return content.String(), nil
}

func buildParams(c generation.Completion) anthropic.MessageNewParams {
	temperature := c.Temperature
	if temperature > maxTemperature {
		temperature = maxTemperature
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.Model),
		MaxTokens: int64(c.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(c.Prompt)),
		},
		Temperature: anthropic.Float(temperature),
	}
	if c.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.System}}
	}
	return params
}

func normalizeBaseURL(apiBase string) string {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		return defaultBaseURL
	}
	base = strings.TrimRight(base, "/")
	return strings.TrimSuffix(base, "/v1")
}
