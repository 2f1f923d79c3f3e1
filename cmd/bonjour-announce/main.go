// ABOUTME: Entry point for the mDNS service announcer
// ABOUTME: Publishes a service instance so browsers have something to find
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Resonate-Protocol/bonjour-go/internal/logging"
	"github.com/Resonate-Protocol/bonjour-go/internal/version"
	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"github.com/Resonate-Protocol/bonjour-go/pkg/facility"
	"go.uber.org/zap"
)

var (
	port        = flag.Int("port", 8080, "Port announced for the service")
	name        = flag.String("name", "", "Instance name (default: hostname-bonjour)")
	serviceType = flag.String("type", discovery.ServiceHTTP, "Service type to announce")
	domain      = flag.String("domain", discovery.LocalDomain, "Domain to announce in")
	txt         = flag.String("txt", "", "Comma separated TXT records, e.g. path=/,version=1")
	logFile     = flag.String("log-file", "bonjour-announce.log", "Log file path")
	debug       = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	logger, closeLog, err := logging.New(logging.Config{Level: level, File: *logFile, Console: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	instance := *name
	if instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		instance = fmt.Sprintf("%s-bonjour", hostname)
	}

	st, err := discovery.NormalizeServiceType(*serviceType)
	if err != nil {
		logger.Fatal("invalid service type", zap.Error(err))
	}

	var text []string
	if *txt != "" {
		text = strings.Split(*txt, ",")
	}

	logger.Info("starting announcer",
		zap.String("software", version.String()),
		zap.String("instance", instance),
		zap.String("type", st),
		zap.Int("port", *port),
		zap.String("log_file", *logFile))
	logger.Info("press Ctrl-C to stop")

	adv, err := facility.Advertise(facility.AdvertiseConfig{
		Instance: instance,
		Service:  st,
		Domain:   *domain,
		Port:     *port,
		Text:     text,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to advertise", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))

	if err := adv.Shutdown(); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("announcer stopped")
}
