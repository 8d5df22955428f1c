package run

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sipeed/picocast/cmd/picocast/internal"
	"github.com/sipeed/picocast/pkg/acquire"
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/generation"
	"github.com/sipeed/picocast/pkg/pipeline"
)

type runner interface {
	Run(ctx context.Context, in acquire.Input, opts pipeline.Options) (*pipeline.Result, error)
}

var (
	loadConfig  = internal.LoadConfig
	newPipeline = func(cfg *config.Config) (runner, error) { return internal.NewPipeline(cfg) }
)

type options struct {
	text        string
	url         string
	file        string
	model       string
	maxTokens   int
	temperature float64
	voice       string
	output      string
	quiet       bool
}

func NewRunCommand() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate text from a source and synthesize it to audio",
		Example: `  picocast run --text "Tell me about tides"
  picocast run --url https://example.com/article -o article.mp3
  picocast run --file notes.txt --voice en-GB-SoniaNeural`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, o)
		},
	}

	cmd.Flags().StringVarP(&o.text, "text", "t", "", "Prompt text")
	cmd.Flags().StringVarP(&o.url, "url", "u", "", "Web page to extract paragraphs from")
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "Path to a .txt file")
	cmd.Flags().StringVarP(&o.model, "model", "m", "", "Model ID (defaults to the provider default)")
	cmd.Flags().IntVar(&o.maxTokens, "max-tokens", generation.DefaultMaxTokens, "Maximum tokens to generate")
	cmd.Flags().Float64Var(&o.temperature, "temperature", generation.DefaultTemperature, "Sampling temperature (0-2)")
	cmd.Flags().StringVar(&o.voice, "voice", config.DefaultVoice, "Azure neural voice name")
	cmd.Flags().StringVarP(&o.output, "output", "o", "output.mp3", "Where to write the audio")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "Do not print the generated text")
	cmd.MarkFlagsMutuallyExclusive("text", "url", "file")
	cmd.MarkFlagsOneRequired("text", "url", "file")

	return cmd
}

func runPipeline(cmd *cobra.Command, o options) error {
	in, err := inputFromFlags(o)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := p.Run(ctx, in, pipeline.Options{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
		Voice:       o.voice,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(o.output, res.Audio.Audio, 0o644); err != nil {
		return fmt.Errorf("writing audio: %w", err)
	}

	out := cmd.OutOrStdout()
	if !o.quiet {
		fmt.Fprintln(out, res.Generated)
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%s Wrote %d bytes of %s to %s (model %s, voice %s, run %s)\n",
		internal.Logo, len(res.Audio.Audio), res.Audio.MIMEType(), o.output,
		res.Params.Model, res.Audio.Voice, res.RunID)
	return nil
}

func inputFromFlags(o options) (acquire.Input, error) {
	switch {
	case o.text != "":
		return acquire.PlainText{Text: o.text}, nil
	case o.url != "":
		return acquire.RemoteDocument{URL: o.url}, nil
	case o.file != "":
		content, err := os.ReadFile(o.file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", o.file, err)
		}
		return acquire.UploadedDocument{
			Name:      filepath.Base(o.file),
			MediaType: mediaTypeFor(o.file),
			Content:   content,
		}, nil
	default:
		return nil, errors.New("one of --text, --url or --file is required")
	}
}

func mediaTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".txt" {
		return "text/plain"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
