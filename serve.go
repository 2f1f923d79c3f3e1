// ABOUTME: serve command
// ABOUTME: Runs the WebSocket discovery gateway with Prometheus metrics
package main

import (
	"github.com/Resonate-Protocol/bonjour-go/internal/metrics"
	"github.com/Resonate-Protocol/bonjour-go/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(opts *options) *cobra.Command {
	var (
		listen    string
		name      string
		cacheSize int
		noMDNS    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the discovery gateway",
		Long:  "Serves discovery sessions over WebSocket at /discover, recent results at /services and metrics at /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Gateway.Listen = listen
			}
			if cmd.Flags().Changed("cache-size") {
				cfg.Gateway.CacheSize = cacheSize
			}

			useTUI := !opts.noTUI
			logger, closeLog, err := opts.logger(cfg, !useTUI)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			facilityOpts, err := cfg.FacilityOptions()
			if err != nil {
				return err
			}
			facilityOpts.Logger = logger

			collector, err := metrics.New()
			if err != nil {
				return err
			}

			srv, err := server.New(server.Config{
				Listen:     cfg.Gateway.Listen,
				Name:       name,
				Timeout:    cfg.Timeout,
				CacheSize:  cfg.Gateway.CacheSize,
				EnableMDNS: !noMDNS,
				UseTUI:     useTUI,
				Logger:     logger,
				Metrics:    collector,
				Backend:    cfg.Backend,
				Facility:   facilityOpts,
			})
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			go func() {
				<-ctx.Done()
				logger.Info("shutdown signal received")
				srv.Stop()
			}()

			if err := srv.Start(); err != nil {
				logger.Error("gateway stopped with error", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from config, :8931)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Gateway name announced to clients")
	cmd.Flags().IntVar(&cacheSize, "cache-size", 0, "Resolved services kept for /services")
	cmd.Flags().BoolVar(&noMDNS, "no-mdns", false, "Do not advertise the gateway via mDNS")
	return cmd
}
