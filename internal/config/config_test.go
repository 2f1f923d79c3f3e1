// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, environment overrides, YAML files and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type name string

func (n name) Name() string       { return string(n) }
func (n name) RawAddress() []byte { return nil }
func (n name) Port() int          { return 0 }

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "_http._tcp.", cfg.ServiceType)
	assert.Equal(t, "local.", cfg.Domain)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 3*time.Second, cfg.BrowseWindow)
	assert.Equal(t, "mdns", cfg.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8931", cfg.Gateway.Listen)
	assert.Equal(t, 256, cfg.Gateway.CacheSize)
	assert.Nil(t, cfg.Selector())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("BONJOUR_SERVICE_TYPE", "_printer._tcp.")
	t.Setenv("BONJOUR_TIMEOUT", "2s")
	t.Setenv("BONJOUR_BACKEND", "zeroconf")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "_printer._tcp.", cfg.ServiceType)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, "zeroconf", cfg.Backend)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonjour.yaml")
	yaml := `
service_type: _ipp._tcp.
timeout: 5s
select: "office-*"
gateway:
  listen: ":9000"
  cache_size: 16
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "_ipp._tcp.", cfg.ServiceType)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, ":9000", cfg.Gateway.Listen)
	assert.Equal(t, 16, cfg.Gateway.CacheSize)
	assert.Equal(t, "local.", cfg.Domain)

	sel := cfg.Selector()
	require.NotNil(t, sel)
	assert.True(t, sel(name("office-laser")))
	assert.False(t, sel(name("kitchen")))
}

func TestLoadFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonjour.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: zeroconf\n"), 0o600))
	t.Setenv(PathEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "zeroconf", cfg.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ServiceType:  "_http._tcp.",
			Domain:       "local.",
			Timeout:      time.Second,
			BrowseWindow: time.Second,
			Backend:      "mdns",
			Gateway:      Gateway{CacheSize: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad service type", func(c *Config) { c.ServiceType = "http" }},
		{"root domain", func(c *Config) { c.Domain = "." }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"zero browse window", func(c *Config) { c.BrowseWindow = 0 }},
		{"unknown backend", func(c *Config) { c.Backend = "avahi" }},
		{"bad pattern", func(c *Config) { c.Select = "[" }},
		{"zero cache", func(c *Config) { c.Gateway.CacheSize = 0 }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFacilityOptions(t *testing.T) {
	cfg := Config{BrowseWindow: 2 * time.Second}
	opts, err := cfg.FacilityOptions()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, opts.BrowseWindow)
	assert.Nil(t, opts.Interface)

	cfg.Timeout = 2 * time.Second
	cfg.BrowseWindow = 3 * time.Second
	opts, err = cfg.FacilityOptions()
	require.NoError(t, err)
	assert.Equal(t, time.Second, opts.BrowseWindow)

	cfg.Interface = "does-not-exist0"
	_, err = cfg.FacilityOptions()
	assert.Error(t, err)
}
