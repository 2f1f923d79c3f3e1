// ABOUTME: Tests for the command tree
// ABOUTME: Checks flag overrides on top of config and the version command
package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/internal/config"
	"github.com/Resonate-Protocol/bonjour-go/internal/version"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsed(t *testing.T, args ...string) (*options, *cobra.Command) {
	t.Helper()
	t.Setenv(config.PathEnv, "")

	opts := &options{}
	cmd := &cobra.Command{Use: "test"}
	opts.register(cmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	return opts, cmd
}

func TestFlagsOverrideConfig(t *testing.T) {
	opts, cmd := parsed(t, "--type", "_ipp._tcp", "--timeout", "2s", "--select", "office*", "--backend", "zeroconf")

	cfg, err := opts.load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "_ipp._tcp", cfg.ServiceType)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, "office*", cfg.Select)
	assert.Equal(t, "zeroconf", cfg.Backend)
	assert.Equal(t, "local.", cfg.Domain)
	assert.Equal(t, 3*time.Second, cfg.BrowseWindow)
}

func TestUnsetFlagsKeepEnvironment(t *testing.T) {
	t.Setenv("BONJOUR_SERVICE_TYPE", "_printer._tcp.")
	opts, cmd := parsed(t, "--timeout", "1s")

	cfg, err := opts.load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "_printer._tcp.", cfg.ServiceType)
	assert.Equal(t, time.Second, cfg.Timeout)
}

func TestFlagValidation(t *testing.T) {
	opts, cmd := parsed(t, "--backend", "carrier-pigeon")

	_, err := opts.load(cmd)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), version.String())
}

func TestShortTimeoutBoundsBrowseWindow(t *testing.T) {
	opts, cmd := parsed(t, "--timeout", "2s")

	cfg, err := opts.load(cmd)
	require.NoError(t, err)

	fo, err := cfg.FacilityOptions()
	require.NoError(t, err)
	assert.Less(t, fo.BrowseWindow, cfg.Timeout)
}
