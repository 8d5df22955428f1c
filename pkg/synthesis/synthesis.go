// Package synthesis turns validated text into speech audio.
//
// The remote call is modelled as a Speaker returning a closed Result with three
// outcomes: completed audio, an explicit cancellation carrying the service's
// reason and details, or any other terminal reason. Client maps each outcome
// onto an Artifact or a classified error.
package synthesis

import (
	"context"
	"fmt"

	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/security"
)

const component = "synthesis"

// Reason is the terminal state of one synthesis request.
type Reason int

const (
	ReasonCompleted Reason = iota + 1
	ReasonCanceled
	ReasonNoAudio
)

func (r Reason) String() string {
	switch r {
	case ReasonCompleted:
		return "SynthesizingAudioCompleted"
	case ReasonCanceled:
		return "Canceled"
	case ReasonNoAudio:
		return "NoAudio"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

type CancellationReason string

const (
	CancellationError       CancellationReason = "Error"
	CancellationEndOfStream CancellationReason = "EndOfStream"
)

// Cancellation describes why the service canceled a request.
type Cancellation struct {
	Reason       CancellationReason
	ErrorCode    int
	ErrorDetails string
	Retryable    bool
}

// Result is what a Speaker reports. Audio is set only for ReasonCompleted and
// Cancellation only for ReasonCanceled.
type Result struct {
	Reason       Reason
	Audio        []byte
	Cancellation *Cancellation
}

// AudioFormat describes an output profile of the speech service.
type AudioFormat struct {
	Name       string `json:"name"`
	MIMEType   string `json:"mime_type"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate"`
	Channels   int    `json:"channels"`
}

// FormatMP3Mono16kHz is the only profile requested: 16 kHz mono MP3 at 128 kbit/s.
var FormatMP3Mono16kHz = AudioFormat{
	Name:       "audio-16khz-128kbitrate-mono-mp3",
	MIMEType:   "audio/mp3",
	SampleRate: 16000,
	BitRate:    128000,
	Channels:   1,
}

// Request is one call to a Speaker.
type Request struct {
	Text   string
	Voice  config.Voice
	Format AudioFormat
}

// Speaker performs the remote synthesis call. A returned error means the
// request never produced a Result (transport failure, bad endpoint, ...).
type Speaker interface {
	Speak(ctx context.Context, req Request) (Result, error)
}

// Artifact is synthesized audio.
type Artifact struct {
	Audio  []byte      `json:"-"`
	Format AudioFormat `json:"format"`
	Voice  string      `json:"voice"`
}

func (a Artifact) MIMEType() string { return a.Format.MIMEType }

// Voices returns the voice catalogue.
func Voices() []config.Voice {
	return config.DefaultVoices()
}

type Client struct {
	speaker   Speaker
	cfg       *config.Config
	maxLength int
}

func NewClient(cfg *config.Config, speaker Speaker) *Client {
	return &Client{
		speaker:   speaker,
		cfg:       cfg,
		maxLength: cfg.Limits.MaxSynthesisLength,
	}
}

// ResolveVoice returns the catalogue entry for name, or the default voice.
func (c *Client) ResolveVoice(name string) config.Voice {
	if v, ok := c.cfg.Voice(name); ok {
		return v
	}
	v, _ := c.cfg.Voice(config.DefaultVoice)
	return v
}

// Synthesize speaks text with voice. Text longer than the synthesis bound is a
// security error; unknown voices fall back to the default.
func (c *Client) Synthesize(ctx context.Context, text security.Text, voice string) (Artifact, error) {
	checked, err := security.Validate(text.String(), c.maxLength)
	if err != nil {
		return Artifact{}, err
	}
	v := c.ResolveVoice(voice)

	logger.InfoCF(component, "Converting text to speech", map[string]any{
		"voice":       v.Name,
		"text_length": checked.Len(),
		"format":      FormatMP3Mono16kHz.Name,
	})

	res, err := c.speaker.Speak(ctx, Request{
		Text:   checked.String(),
		Voice:  v,
		Format: FormatMP3Mono16kHz,
	})
	if err != nil {
		logger.ErrorCF(component, "Speech synthesis request failed", map[string]any{"error": err.Error()})
		return Artifact{}, failure.API(component, err, "Azure Speech synthesis error")
	}

	switch res.Reason {
	case ReasonCompleted:
		logger.InfoCF(component, "Speech synthesized successfully", map[string]any{
			"voice":      v.Name,
			"size_bytes": len(res.Audio),
		})
		return Artifact{Audio: res.Audio, Format: FormatMP3Mono16kHz, Voice: v.Name}, nil
	case ReasonCanceled:
		msg := "speech synthesis canceled"
		if cd := res.Cancellation; cd != nil {
			msg += ": " + string(cd.Reason)
			if cd.ErrorDetails != "" {
				msg += " - " + cd.ErrorDetails
			}
			logger.ErrorCF(component, "Speech synthesis canceled", map[string]any{
				"reason":     string(cd.Reason),
				"error_code": cd.ErrorCode,
				"retryable":  cd.Retryable,
				"details":    cd.ErrorDetails,
			})
		}
		return Artifact{}, failure.API(component, nil, "%s", msg)
	default:
		logger.ErrorCF(component, "Speech synthesis failed", map[string]any{"reason": res.Reason.String()})
		return Artifact{}, failure.API(component, nil, "speech synthesis failed with reason: %s", res.Reason)
	}
}
