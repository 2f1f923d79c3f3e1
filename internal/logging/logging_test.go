// ABOUTME: Tests for logger construction
// ABOUTME: Verifies file output, level parsing and the no-output case
package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonjour.log")

	logger, closeFn, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Debug("browsing started")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"browsing started"`)
	assert.Contains(t, string(data), `"level":"debug"`)
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonjour.log")

	logger, closeFn, err := New(Config{Level: "warn", File: path})
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestNewInvalidLevel(t *testing.T) {
	_, _, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWithoutOutputs(t *testing.T) {
	logger, closeFn, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closeFn())
}
