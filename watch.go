// ABOUTME: watch command
// ABOUTME: Runs one search through a remote gateway and prints the results
package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/bonjour-go/internal/client"
	"github.com/Resonate-Protocol/bonjour-go/internal/protocol"
	"github.com/spf13/cobra"
)

var errGatewayClosed = errors.New("gateway closed the connection")

func newWatchCommand(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Browse through a remote discovery gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Gateway.Addr = addr
			}

			logger, closeLog, err := opts.logger(cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			c := client.NewClient(client.Config{ServerAddr: cfg.Gateway.Addr, Logger: logger})
			if err := c.Connect(); err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s (%s)\n", c.Hello.Name, c.Hello.Software)

			if err := c.Start(protocol.DiscoveryStart{
				ServiceType: cfg.ServiceType,
				Domain:      cfg.Domain,
				Select:      cfg.Select,
			}); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			for {
				select {
				case <-ctx.Done():
					_ = c.Stop()
					fmt.Fprintln(out, "Discovery has been cancelled")
					return nil
				case <-c.Done():
					return errGatewayClosed
				case svc := <-c.Services:
					printService(out, svc)
				case fin := <-c.DiscoveryFinished:
					fmt.Fprintf(out, "Found %d services\n", len(fin.Services))
				case <-c.ResolutionFinished:
					drainServices(out, c)
					return nil
				case <-c.NoServices:
					fmt.Fprintln(out, "No services were found on the network")
					return nil
				case e := <-c.Errors:
					return fmt.Errorf("gateway error %s: %s", e.Error, e.Message)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Gateway address (default from config, localhost:8931)")
	return cmd
}

func printService(out io.Writer, svc protocol.Service) {
	if svc.Address == "" {
		fmt.Fprintf(out, "  %s  no IPv4 address, port %d\n", svc.Name, svc.Port)
		return
	}
	fmt.Fprintf(out, "  %s  %s\n", svc.Name, svc.Address)
}

// drainServices prints services that were queued behind resolution/finished
func drainServices(out io.Writer, c *client.Client) {
	for {
		select {
		case svc := <-c.Services:
			printService(out, svc)
		default:
			return
		}
	}
}
