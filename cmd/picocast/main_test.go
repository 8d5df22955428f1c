package main

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picocast/pkg/failure"
)

func TestNewPicocastCommand(t *testing.T) {
	cmd := NewPicocastCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "picocast", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"run", "serve", "voices", "models", "config", "version"} {
		assert.True(t, slices.Contains(names, want), "missing subcommand %q", want)
	}
}

func TestErrorMessage(t *testing.T) {
	msg := errorMessage(failure.Configuration("config", "Missing required environment variable: X"))
	assert.True(t, strings.HasPrefix(msg, "Configuration error: "), msg)
	assert.Contains(t, msg, "Missing required environment variable: X")

	assert.Equal(t, "Error: boom", errorMessage(errors.New("boom")))
}
