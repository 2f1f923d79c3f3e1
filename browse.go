// ABOUTME: browse command
// ABOUTME: Runs discovery in the TUI or streams results to the log
package main

import (
	"context"
	"fmt"

	"github.com/Resonate-Protocol/bonjour-go/internal/app"
	"github.com/Resonate-Protocol/bonjour-go/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runBrowse(cmd *cobra.Command, opts *options) error {
	cfg, err := opts.load(cmd)
	if err != nil {
		return err
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

	appConfig := app.Config{
		ServiceType: cfg.ServiceType,
		Domain:      cfg.Domain,
		Timeout:     cfg.Timeout,
		Selector:    cfg.Selector(),
		Backend:     cfg.Backend,
		Facility:    facilityOpts,
		Logger:      logger,
	}

	ctx, stop := signalContext()
	defer stop()

	if !useTUI {
		logger.Info("starting browser",
			zap.String("type", cfg.ServiceType),
			zap.String("backend", cfg.Backend))

		browser, err := app.New(appConfig, ui.NewLogView(logger))
		if err != nil {
			return err
		}
		if err := browser.Start(); err != nil {
			_ = browser.Teardown()
			return err
		}

		<-ctx.Done()
		logger.Info("shutdown signal received")
		return browser.Teardown()
	}

	ctrl := ui.NewControl()
	program := ui.Run(cfg.ServiceType, ctrl)

	browser, err := app.New(appConfig, ui.NewProgramView(program))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tuiErr := make(chan error, 1)
	go func() {
		_, err := program.Run()
		tuiErr <- err
		cancel()
	}()

	if err := browser.Start(); err != nil {
		logger.Warn("initial discovery failed", zap.Error(err))
	}

	runErr := browser.Run(ctx, ctrl)
	program.Quit()
	if err := <-tuiErr; err != nil {
		logger.Error("TUI failed", zap.Error(err))
	}

	if err := browser.Teardown(); err != nil {
		logger.Warn("teardown failed", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("browser: %w", runErr)
	}
	return nil
}
