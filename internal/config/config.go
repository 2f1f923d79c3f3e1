// ABOUTME: Configuration loading with cleanenv
// ABOUTME: Reads an optional YAML file overridden by BONJOUR_* environment variables
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"github.com/Resonate-Protocol/bonjour-go/pkg/facility"
	"github.com/ilyakaznacheev/cleanenv"
)

// PathEnv names the environment variable holding the config file path
const PathEnv = "BONJOUR_CONFIG"

type Config struct {
	ServiceType  string        `yaml:"service_type" env:"BONJOUR_SERVICE_TYPE" env-default:"_http._tcp."`
	Domain       string        `yaml:"domain" env:"BONJOUR_DOMAIN" env-default:"local."`
	Timeout      time.Duration `yaml:"timeout" env:"BONJOUR_TIMEOUT" env-default:"10s"`
	BrowseWindow time.Duration `yaml:"browse_window" env:"BONJOUR_BROWSE_WINDOW" env-default:"3s"`
	Backend      string        `yaml:"backend" env:"BONJOUR_BACKEND" env-default:"mdns"`
	Interface    string        `yaml:"interface" env:"BONJOUR_INTERFACE"`

	// Select is a path.Match pattern; only matching instance names get resolved
	Select string `yaml:"select" env:"BONJOUR_SELECT"`

	Log     Log     `yaml:"log"`
	Gateway Gateway `yaml:"gateway"`
}

type Log struct {
	File  string `yaml:"file" env:"BONJOUR_LOG_FILE" env-default:"bonjour.log"`
	Level string `yaml:"level" env:"BONJOUR_LOG_LEVEL" env-default:"info"`
}

type Gateway struct {
	Listen    string `yaml:"listen" env:"BONJOUR_GATEWAY_LISTEN" env-default:":8931"`
	Addr      string `yaml:"addr" env:"BONJOUR_GATEWAY_ADDR" env-default:"localhost:8931"`
	CacheSize int    `yaml:"cache_size" env:"BONJOUR_GATEWAY_CACHE_SIZE" env-default:"256"`
}

// Load reads configuration. Priority: env > file > default. An empty
// configPath falls back to $BONJOUR_CONFIG; with neither set only the
// environment is read.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv(PathEnv)
	}

	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read environment: %w", err)
		}
	} else {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values cleanenv cannot
func (c *Config) Validate() error {
	if _, err := discovery.NormalizeServiceType(c.ServiceType); err != nil {
		return fmt.Errorf("service_type %q: %w", c.ServiceType, err)
	}
	if _, err := discovery.NormalizeDomain(c.Domain); err != nil {
		return fmt.Errorf("domain %q: %w", c.Domain, err)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.BrowseWindow <= 0 {
		return errors.New("browse_window must be positive")
	}
	switch c.Backend {
	case facility.BackendMDNS, facility.BackendZeroconf:
	default:
		return fmt.Errorf("%w: %q", facility.ErrUnknownBackend, c.Backend)
	}
	if c.Select != "" {
		if _, err := path.Match(c.Select, ""); err != nil {
			return fmt.Errorf("select %q: %w", c.Select, err)
		}
	}
	if c.Gateway.CacheSize <= 0 {
		return errors.New("gateway cache_size must be positive")
	}
	return nil
}

// Selector returns the resolution filter for Select, nil when unset
func (c *Config) Selector() func(discovery.Handle) bool {
	if c.Select == "" {
		return nil
	}
	pattern := c.Select
	return func(h discovery.Handle) bool {
		ok, _ := path.Match(pattern, h.Name())
		return ok
	}
}

// FacilityOptions converts the config into facility options. The browse
// window is kept below the timeout.
func (c *Config) FacilityOptions() (facility.Options, error) {
	opts := facility.Options{BrowseWindow: c.BrowseWindow}.Bounded(c.Timeout)
	if c.Interface != "" {
		iface, err := net.InterfaceByName(c.Interface)
		if err != nil {
			return opts, fmt.Errorf("interface %q: %w", c.Interface, err)
		}
		opts.Interface = iface
	}
	return opts, nil
}
