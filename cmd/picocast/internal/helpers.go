package internal

import (
	"fmt"
	"runtime"

	"github.com/sipeed/picocast/pkg/acquire"
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/generation"
	"github.com/sipeed/picocast/pkg/generation/provider"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/pipeline"
	"github.com/sipeed/picocast/pkg/synthesis"
)

const Logo = "🎙"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// EnvFile is the dotenv file read before the process environment is parsed.
var EnvFile = ".env"

// Debug forces debug logging regardless of LOG_LEVEL.
var Debug bool

// LoadConfig reads the configuration and applies its logging settings.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(EnvFile)
	if err != nil {
		return nil, err
	}

	if Debug {
		logger.SetLevel(logger.DEBUG)
	} else if level, ok := logger.ParseLevel(cfg.Log.Level); ok {
		logger.SetLevel(level)
	}

	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return nil, fmt.Errorf("enabling file logging: %w", err)
		}
	}

	return cfg, nil
}

// NewPipeline wires the acquirer, the configured LLM backend and the Azure
// speaker into a pipeline.
func NewPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	backend, err := provider.New(cfg)
	if err != nil {
		return nil, err
	}

	speaker := synthesis.NewAzureSpeaker(
		cfg.Speech.Key,
		cfg.Speech.Region,
		synthesis.WithEndpoint(cfg.Speech.Endpoint),
	)

	return pipeline.New(
		cfg,
		acquire.New(cfg),
		generation.NewClient(cfg, backend),
		synthesis.NewClient(cfg, speaker),
	), nil
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

// GetVersion returns the version string
func GetVersion() string {
	return version
}
