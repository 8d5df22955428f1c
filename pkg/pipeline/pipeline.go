// Package pipeline runs one text-to-speech job end to end: acquire the input,
// validate it, fit it into the model's context window, generate a reply and
// speak it.
//
// A Pipeline holds no per-run state and may be shared by concurrent callers.
// The first failing stage ends the run and its error is returned as is.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/picocast/pkg/acquire"
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/generation"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/security"
	"github.com/sipeed/picocast/pkg/synthesis"
	"github.com/sipeed/picocast/pkg/truncate"
)

const component = "pipeline"

type Acquirer interface {
	Acquire(ctx context.Context, in acquire.Input) (string, error)
}

type Generator interface {
	Clamp(p generation.Params) generation.Params
	Generate(ctx context.Context, prompt security.Text, p generation.Params) (security.Text, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text security.Text, voice string) (synthesis.Artifact, error)
}

// Options are the per-run settings chosen by the caller.
type Options struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Voice       string  `json:"voice"`
}

// Result is the outcome of a successful run.
type Result struct {
	RunID     string             `json:"run_id"`
	Source    string             `json:"source"`
	Prompt    string             `json:"prompt"`
	Generated string             `json:"generated_text"`
	Audio     synthesis.Artifact `json:"audio"`
	Params    generation.Params  `json:"params"`
	Duration  time.Duration      `json:"duration"`
}

type Pipeline struct {
	acquirer    Acquirer
	generator   Generator
	synthesizer Synthesizer
	truncator   truncate.Truncator

	maxTextLength int
	contextTokens int
	observers     []Observer
	newRunID      func() string
}

type Option func(*Pipeline)

func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// WithRunIDs replaces the run ID generator.
func WithRunIDs(next func() string) Option {
	return func(p *Pipeline) { p.newRunID = next }
}

func New(cfg *config.Config, acq Acquirer, gen Generator, syn Synthesizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		acquirer:      acq,
		generator:     gen,
		synthesizer:   syn,
		truncator:     truncate.New(cfg.Limits.CharsPerToken),
		maxTextLength: cfg.Limits.MaxTextLength,
		contextTokens: cfg.Limits.ContextTokens,
		newRunID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type run struct {
	p     *Pipeline
	id    string
	state State
}

func (r *run) enter(to State, err error) {
	t := Transition{RunID: r.id, From: r.state, To: to, At: time.Now(), Err: err}
	r.state = to
	for _, o := range r.p.observers {
		o(t)
	}
}

func (r *run) fail(err error) error {
	failedIn := r.state
	r.enter(StateFailed, err)
	logger.WarnCF(component, "Run failed", map[string]any{
		"run_id": r.id,
		"stage":  failedIn.String(),
		"kind":   failure.KindOf(err).String(),
		"error":  err.Error(),
	})
	return err
}

// Run executes one job. On failure the returned error is the failing
// component's error, unchanged.
func (p *Pipeline) Run(ctx context.Context, in acquire.Input, opts Options) (*Result, error) {
	r := &run{p: p, id: p.newRunID(), state: StateIdle}
	start := time.Now()

	source := "none"
	if in != nil {
		source = in.Source()
	}
	logger.InfoCF(component, "Run started", map[string]any{"run_id": r.id, "source": source})

	r.enter(StateAcquiring, nil)
	raw, err := p.acquirer.Acquire(ctx, in)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StateValidating, nil)
	text, err := security.Validate(raw, p.maxTextLength)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StateTruncating, nil)
	params := p.generator.Clamp(generation.Params{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	budget := truncate.PromptBudget(p.contextTokens, params.MaxTokens)
	truncated := p.truncator.Truncate(text.String(), budget)
	prompt, err := security.Validate(truncated, p.maxTextLength)
	if err != nil {
		return nil, r.fail(err)
	}
	if prompt.Len() < text.Len() {
		logger.DebugCF(component, "Prompt truncated", map[string]any{
			"run_id":        r.id,
			"budget_tokens": budget,
			"from_chars":    text.Len(),
			"to_chars":      prompt.Len(),
		})
	}

	r.enter(StateGenerating, nil)
	generated, err := p.generator.Generate(ctx, prompt, params)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StateSynthesizing, nil)
	audio, err := p.synthesizer.Synthesize(ctx, generated, opts.Voice)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StateDone, nil)
	res := &Result{
		RunID:     r.id,
		Source:    source,
		Prompt:    prompt.String(),
		Generated: generated.String(),
		Audio:     audio,
		Params:    params,
		Duration:  time.Since(start),
	}
	logger.InfoCF(component, "Run completed", map[string]any{
		"run_id":      r.id,
		"model":       params.Model,
		"voice":       audio.Voice,
		"audio_bytes": len(audio.Audio),
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res, nil
}
