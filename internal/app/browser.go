// ABOUTME: Discovery browser application orchestration
// ABOUTME: Coordinates the event loop, session, facility and presenter
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/internal/ui"
	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"github.com/Resonate-Protocol/bonjour-go/pkg/facility"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const loopQueueSize = 64

// Config holds browser configuration
type Config struct {
	ServiceType string
	Domain      string
	Timeout     time.Duration
	Selector    func(discovery.Handle) bool

	Backend  string
	Facility facility.Options

	Logger   *zap.Logger
	Observer discovery.Observer

	// NewFacility overrides backend selection
	NewFacility func(d discovery.Dispatcher) (facility.Closer, error)
}

// Browser runs discovery searches and reports them to a view
type Browser struct {
	config    Config
	logger    *zap.Logger
	presenter *ui.Presenter

	loop     *discovery.Loop
	session  *discovery.Session
	facility facility.Closer

	cancel   context.CancelFunc
	loopDone chan struct{}
}

// New creates a browser rendering into view. Its event loop runs until
// Teardown.
func New(config Config, view ui.View) (*Browser, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ServiceType == "" {
		config.ServiceType = discovery.ServiceHTTP
	}
	if config.Timeout <= 0 {
		config.Timeout = discovery.DefaultTimeout
	}
	if config.NewFacility == nil {
		backend, opts := config.Backend, config.Facility.Bounded(config.Timeout)
		if opts.Logger == nil {
			opts.Logger = config.Logger
		}
		config.NewFacility = func(d discovery.Dispatcher) (facility.Closer, error) {
			return facility.New(backend, d, opts)
		}
	}

	b := &Browser{
		config:    config,
		logger:    config.Logger,
		presenter: ui.NewPresenter(view),
		loop:      discovery.NewLoop(loopQueueSize),
		loopDone:  make(chan struct{}),
	}

	fac, err := config.NewFacility(b.loop)
	if err != nil {
		return nil, fmt.Errorf("failed to create facility: %w", err)
	}
	b.facility = fac

	b.session = discovery.NewSession(fac, discovery.Config{
		Timeout:              config.Timeout,
		Dispatcher:           b.loop,
		Logger:               config.Logger,
		Observer:             config.Observer,
		Selector:             config.Selector,
		OnNoServicesFound:    b.presenter.NoServicesFound,
		OnDiscoveryFinished:  b.presenter.DiscoveryFinished,
		OnResolutionFinished: b.presenter.ResolutionFinished,
	})

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go func() {
		defer close(b.loopDone)
		_ = b.loop.Run(ctx)
	}()

	return b, nil
}

// Start begins a search for the configured service type
func (b *Browser) Start() error {
	var err error
	if callErr := b.loop.Call(func() {
		err = b.session.Start(b.config.ServiceType, b.config.Domain, b.serviceResolved)
		if errors.Is(err, discovery.ErrAlreadySearching) {
			return
		}
		if err != nil {
			b.presenter.DiscoveryFailed(err)
			return
		}
		// callbacks queue behind this call
		b.presenter.DiscoveryStarted()
	}); callErr != nil {
		return callErr
	}
	return err
}

// StopDiscovering cancels the running search
func (b *Browser) StopDiscovering() error {
	return b.loop.Call(func() {
		b.session.Stop()
		b.presenter.DiscoveryCancelled()
	})
}

// IsDiscovering reports whether a search is in progress
func (b *Browser) IsDiscovering() bool {
	var searching bool
	if err := b.loop.Call(func() { searching = b.session.IsSearching() }); err != nil {
		return false
	}
	return searching
}

// Teardown disposes the session and releases the facility
func (b *Browser) Teardown() error {
	var err error
	if callErr := b.loop.Call(b.session.Dispose); callErr != nil {
		err = multierr.Append(err, callErr)
	}
	b.cancel()
	<-b.loopDone
	return multierr.Append(err, b.facility.Close())
}

// Run serves TUI commands until ctx ends or the user quits. Restart only
// starts a search when none is running and stop only cancels a running one.
func (b *Browser) Run(ctx context.Context, ctrl *ui.Control) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ctrl.Quit:
			return nil
		case cmd := <-ctrl.Commands:
			switch cmd {
			case ui.CommandRestart:
				if !b.IsDiscovering() {
					if err := b.Start(); err != nil {
						b.logger.Warn("restart failed", zap.Error(err))
					}
				}
			case ui.CommandStop:
				if b.IsDiscovering() {
					if err := b.StopDiscovering(); err != nil {
						return err
					}
				}
			}
		}
	}
}

// serviceResolved runs on the loop
func (b *Browser) serviceResolved(rec discovery.ServiceRecord) {
	b.logger.Info("service",
		zap.String("name", rec.Name),
		zap.String("address", rec.Address),
		zap.Int("port", rec.Port))
	b.presenter.ServiceResolved(rec)
}
