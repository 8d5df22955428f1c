package synthesis

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	azureEndpointFormat = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"
	azureUserAgent      = "picocast"

	defaultSpeechTimeout = 60 * time.Second
	maxAudioBytes        = 50 << 20
	maxErrorBodyBytes    = 1 << 10
)

// AzureSpeaker calls the Azure Speech text-to-speech REST endpoint.
type AzureSpeaker struct {
	key        string
	endpoint   string
	httpClient *http.Client
}

type AzureOption func(*AzureSpeaker)

func WithEndpoint(endpoint string) AzureOption {
	return func(s *AzureSpeaker) {
		if endpoint != "" {
			s.endpoint = endpoint
		}
	}
}

func WithHTTPClient(c *http.Client) AzureOption {
	return func(s *AzureSpeaker) {
		if c != nil {
			s.httpClient = c
		}
	}
}

func NewAzureSpeaker(key, region string, opts ...AzureOption) *AzureSpeaker {
	s := &AzureSpeaker{
		key:        key,
		endpoint:   fmt.Sprintf(azureEndpointFormat, region),
		httpClient: &http.Client{Timeout: defaultSpeechTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AzureSpeaker) Endpoint() string { return s.endpoint }

func (s *AzureSpeaker) Speak(ctx context.Context, req Request) (Result, error) {
	body, err := buildSSML(req.Text, req.Voice.Name, req.Voice.Locale)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build SSML: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create TTS request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", req.Format.Name)
	httpReq.Header.Set("User-Agent", azureUserAgent)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		details := strings.TrimSpace(string(raw))
		if details == "" {
			details = http.StatusText(resp.StatusCode)
		}
		return Result{
			Reason: ReasonCanceled,
			Cancellation: &Cancellation{
				Reason:       CancellationError,
				ErrorCode:    resp.StatusCode,
				ErrorDetails: details,
				Retryable:    resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError,
			},
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Reason: ReasonNoAudio}, nil
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read TTS audio: %w", err)
	}
	if len(audio) == 0 {
		return Result{Reason: ReasonNoAudio}, nil
	}
	return Result{Reason: ReasonCompleted, Audio: audio}, nil
}

// buildSSML wraps text in a single-voice SSML document. locale defaults to the
// first two dash-separated parts of the voice name.
func buildSSML(text, voice, locale string) ([]byte, error) {
	if locale == "" {
		locale = localeFromVoice(voice)
	}
	var buf bytes.Buffer
	buf.WriteString(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="`)
	if err := xml.EscapeText(&buf, []byte(locale)); err != nil {
		return nil, err
	}
	buf.WriteString(`"><voice name="`)
	if err := xml.EscapeText(&buf, []byte(voice)); err != nil {
		return nil, err
	}
	buf.WriteString(`">`)
	if err := xml.EscapeText(&buf, []byte(text)); err != nil {
		return nil, err
	}
	buf.WriteString(`</voice></speak>`)
	return buf.Bytes(), nil
}

func localeFromVoice(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}
