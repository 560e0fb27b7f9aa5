package logutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "dropzy.log")

	logger, closer, err := New("info", file)
	require.NoError(t, err)

	logger.Info().Msg("first")
	logger.Debug().Msg("filtered")
	closer()

	logger, closer, err = New("info", file)
	require.NoError(t, err)
	logger.Info().Msg("second")
	closer()

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "file should be appended, debug filtered")
	assert.Contains(t, lines[0], `"message":"first"`)
	assert.Contains(t, lines[1], `"message":"second"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New("loud", "")
	assert.Error(t, err)
}

type tagHook struct{}

func (tagHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) { e.Bool("hooked", true) }

func TestNew_AppliesHooks(t *testing.T) {
	file := filepath.Join(t.TempDir(), "hooked.log")

	logger, closer, err := New("debug", file, tagHook{})
	require.NoError(t, err)
	logger.Info().Msg("x")
	closer()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hooked":true`)
}
