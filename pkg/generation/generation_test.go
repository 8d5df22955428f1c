package generation

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/security"
)

type fakeBackend struct {
	name     string
	complete func(ctx context.Context, c Completion) (string, error)
	calls    []Completion
}

func (f *fakeBackend) Name() string {
	if f.name == "" {
		return "Fake"
	}
	return f.name
}

func (f *fakeBackend) Complete(ctx context.Context, c Completion) (string, error) {
	f.calls = append(f.calls, c)
	return f.complete(ctx, c)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromMap(map[string]string{
		"OPENAI_API_KEY":      "sk-test-0123456789",
		"AZURE_SPEECH_KEY":    "0123456789abcdef0123456789abcdef",
		"AZURE_SPEECH_REGION": "westeurope-test",
	})
	require.NoError(t, err)
	return cfg
}

func mustText(t *testing.T, s string) security.Text {
	t.Helper()
	text, err := security.Validate(s, 1000)
	require.NoError(t, err)
	return text
}

func TestClamp(t *testing.T) {
	c := NewClient(testConfig(t), &fakeBackend{})
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{"valid", Params{"gpt-4o", 500, 1.2}, Params{"gpt-4o", 500, 1.2}},
		{"unknown model", Params{"not-a-real-model", 500, 0.2}, Params{"gpt-4o-mini", 500, 0.2}},
		{"empty model", Params{"", 500, 0.2}, Params{"gpt-4o-mini", 500, 0.2}},
		{"too many tokens", Params{"gpt-4o", 9000, 0.2}, Params{"gpt-4o", MaxOutputTokens, 0.2}},
		{"exactly max tokens", Params{"gpt-4o", 4000, 0.2}, Params{"gpt-4o", 4000, 0.2}},
		{"zero tokens", Params{"gpt-4o", 0, 0.2}, Params{"gpt-4o", DefaultMaxTokens, 0.2}},
		{"negative tokens", Params{"gpt-4o", -3, 0.2}, Params{"gpt-4o", DefaultMaxTokens, 0.2}},
		{"hot temperature", Params{"gpt-4o", 10, 5.0}, Params{"gpt-4o", 10, DefaultTemperature}},
		{"negative temperature", Params{"gpt-4o", 10, -0.1}, Params{"gpt-4o", 10, DefaultTemperature}},
		{"boundary temperatures", Params{"gpt-4o", 10, 2.0}, Params{"gpt-4o", 10, 2.0}},
		{"zero temperature", Params{"gpt-4o", 10, 0}, Params{"gpt-4o", 10, 0}},
		{"nan temperature", Params{"gpt-4o", 10, math.NaN()}, Params{"gpt-4o", 10, DefaultTemperature}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Clamp(tt.in))
		})
	}
}

func TestGenerate_ClampsInsteadOfFailing(t *testing.T) {
	backend := &fakeBackend{complete: func(context.Context, Completion) (string, error) {
		return "  A generated reply.  ", nil
	}}
	c := NewClient(testConfig(t), backend)

	got, err := c.Generate(t.Context(), mustText(t, "Tell me a story."), Params{
		Model:       "not-a-real-model",
		MaxTokens:   1000,
		Temperature: 5.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "A generated reply.", got.String())

	require.Len(t, backend.calls, 1)
	call := backend.calls[0]
	assert.Equal(t, "gpt-4o-mini", call.Model)
	assert.Equal(t, 0.7, call.Temperature)
	assert.Equal(t, 1000, call.MaxTokens)
	assert.Equal(t, SystemPrompt, call.System)
	assert.Equal(t, "Tell me a story.", call.Prompt)
}

func TestGenerate_AppliesDeadline(t *testing.T) {
	backend := &fakeBackend{complete: func(ctx context.Context, _ Completion) (string, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(DefaultTimeout), deadline, 5*time.Second)
		return "ok", nil
	}}
	_, err := NewClient(testConfig(t), backend).Generate(t.Context(), mustText(t, "p"), Params{})
	require.NoError(t, err)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		err      error
		wantKind error
		wantMsg  string
	}{
		{"backend failure", "", errors.New("connection refused"), failure.ErrAPI, "Fake API error: connection refused"},
		{"empty reply", "", nil, failure.ErrAPI, "Empty response from Fake"},
		{"whitespace reply", " \n\t", nil, failure.ErrAPI, "Empty response from Fake"},
		{"reply is only script", "<script>x()</script>", nil, failure.ErrSecurity, "no content left"},
		{"classified backend error", "", failure.API("custom", nil, "quota"), failure.ErrAPI, "quota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{complete: func(context.Context, Completion) (string, error) {
				return tt.reply, tt.err
			}}
			got, err := NewClient(testConfig(t), backend).Generate(t.Context(), mustText(t, "prompt"), Params{})
			require.Error(t, err)
			assert.True(t, got.IsZero())
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestGenerate_BackendErrorIsUnwrappable(t *testing.T) {
	cause := errors.New("boom")
	backend := &fakeBackend{complete: func(context.Context, Completion) (string, error) { return "", cause }}

	_, err := NewClient(testConfig(t), backend).Generate(t.Context(), mustText(t, "prompt"), Params{})
	assert.ErrorIs(t, err, cause)
}

func TestGenerate_RejectsZeroPrompt(t *testing.T) {
	backend := &fakeBackend{}
	_, err := NewClient(testConfig(t), backend).Generate(t.Context(), security.Text{}, Params{})
	assert.ErrorIs(t, err, failure.ErrSecurity)
	assert.Empty(t, backend.calls)
}

// httpBackend posts the completion as JSON, exercising Generate against a real
// HTTP round trip without depending on a provider SDK.
type httpBackend struct {
	url string
}

func (h httpBackend) Name() string { return "HTTP" }

func (h httpBackend) Complete(ctx context.Context, c Completion) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Model", c.Model)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func TestGenerate_TimeoutBecomesAPIError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(testConfig(t), httpBackend{url: server.URL}, WithTimeout(50*time.Millisecond))
	_, err := c.Generate(t.Context(), mustText(t, "prompt"), Params{})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrAPI)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
