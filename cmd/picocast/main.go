// picocast - turn text, web pages and text files into spoken audio
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/picocast/cmd/picocast/internal"
	"github.com/sipeed/picocast/cmd/picocast/internal/configcmd"
	"github.com/sipeed/picocast/cmd/picocast/internal/models"
	"github.com/sipeed/picocast/cmd/picocast/internal/run"
	"github.com/sipeed/picocast/cmd/picocast/internal/serve"
	"github.com/sipeed/picocast/cmd/picocast/internal/version"
	"github.com/sipeed/picocast/cmd/picocast/internal/voices"
	"github.com/sipeed/picocast/pkg/failure"
)

func NewPicocastCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "picocast",
		Short:         internal.Logo + " picocast - generate text with an LLM and read it aloud",
		Version:       internal.FormatVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&internal.EnvFile, "env-file", ".env", "Dotenv file loaded before the environment")
	cmd.PersistentFlags().BoolVarP(&internal.Debug, "debug", "d", false, "Enable debug logging")

	cmd.AddCommand(
		run.NewRunCommand(),
		serve.NewServeCommand(),
		voices.NewVoicesCommand(),
		models.NewModelsCommand(),
		configcmd.NewConfigCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewPicocastCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(1)
	}
}

func errorMessage(err error) string {
	if errors.Is(err, failure.ErrConfiguration) {
		return fmt.Sprintf("Configuration error: %v", err)
	}
	return fmt.Sprintf("Error: %v", err)
}
