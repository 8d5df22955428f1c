package openaiprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sipeed/picocast/pkg/generation"
)

const defaultRequestTimeout = 60 * time.Second

type Provider struct {
	apiBase    string
	httpClient *http.Client
	client     *openai.Client
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// NewProvider builds a chat-completions backend. An empty apiBase uses the
// public OpenAI endpoint.
func NewProvider(apiKey, apiBase string, opts ...Option) *Provider {
	p := &Provider{
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	}
	if p.apiBase != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.apiBase))
	}
	client := openai.NewClient(reqOpts...)
	p.client = &client
	return p
}

func (p *Provider) Name() string { return "OpenAI" }

func (p *Provider) Complete(ctx context.Context, c generation.Completion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.System),
			openai.UserMessage(c.Prompt),
		},
		MaxCompletionTokens: openai.Opt(int64(c.MaxTokens)),
		Temperature:         openai.Opt(c.Temperature),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("request failed (status=%d): %s", apiErr.StatusCode, strings.TrimSpace(apiErr.Message))
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
