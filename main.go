// ABOUTME: Entry point for the Bonjour service browser
// ABOUTME: Builds the cobra command tree and shared configuration flags
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/internal/config"
	"github.com/Resonate-Protocol/bonjour-go/internal/logging"
	"github.com/Resonate-Protocol/bonjour-go/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options holds the flag values shared by every command
type options struct {
	configPath   string
	serviceType  string
	domain       string
	selectGlob   string
	timeout      time.Duration
	browseWindow time.Duration
	backend      string
	iface        string
	logFile      string
	logLevel     string
	noTUI        bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "bonjour",
		Short:         "Browse the local network for Bonjour services",
		Version:       version.Version,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, opts)
		},
	}

	opts.register(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newBrowseCommand(opts),
		newServeCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

func newBrowseCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Discover services and resolve their addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, opts)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", version.String(), version.Manufacturer)
		},
	}
}

func (o *options) register(flags *pflag.FlagSet) {
	flags.StringVar(&o.configPath, "config", "", "YAML config file (default $"+config.PathEnv+")")
	flags.StringVarP(&o.serviceType, "type", "t", "", "Service type to browse, e.g. _http._tcp.")
	flags.StringVarP(&o.domain, "domain", "d", "", "Browse domain")
	flags.StringVarP(&o.selectGlob, "select", "s", "", "Only resolve instance names matching this pattern")
	flags.DurationVar(&o.timeout, "timeout", 0, "Give up when nothing is found within this time")
	flags.DurationVar(&o.browseWindow, "browse-window", 0, "How long one browse listens for answers")
	flags.StringVar(&o.backend, "backend", "", "Discovery backend: mdns or zeroconf")
	flags.StringVar(&o.iface, "interface", "", "Network interface to query on")
	flags.StringVar(&o.logFile, "log-file", "", "Log file path")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&o.noTUI, "no-tui", false, "Disable TUI, use streaming logs instead")
}

// load reads the config file and environment, then applies the flags the
// user set explicitly
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("type") {
		cfg.ServiceType = o.serviceType
	}
	if changed("domain") {
		cfg.Domain = o.domain
	}
	if changed("select") {
		cfg.Select = o.selectGlob
	}
	if changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if changed("browse-window") {
		cfg.BrowseWindow = o.browseWindow
	}
	if changed("backend") {
		cfg.Backend = o.backend
	}
	if changed("interface") {
		cfg.Interface = o.iface
	}
	if changed("log-file") {
		cfg.Log.File = o.logFile
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// logger writes to the log file, and to stdout as well when no TUI owns the
// terminal
func (o *options) logger(cfg *config.Config, console bool) (*zap.Logger, func() error, error) {
	return logging.New(logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: console,
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
