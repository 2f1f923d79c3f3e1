// ABOUTME: grandcat/zeroconf backed discovery facility
// ABOUTME: Browses for one window and resolves instances with targeted lookups
package facility

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// resolver is the subset of *zeroconf.Resolver the facility uses
type resolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Zeroconf implements discovery.Facility with github.com/grandcat/zeroconf
type Zeroconf struct {
	dispatcher  discovery.Dispatcher
	opts        Options
	logger      *zap.Logger
	newResolver func() (resolver, error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	browseCancel context.CancelFunc
	events       discovery.Events
}

var _ Closer = (*Zeroconf)(nil)

// NewZeroconf creates a zeroconf facility delivering events through d
func NewZeroconf(d discovery.Dispatcher, opts Options) *Zeroconf {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	z := &Zeroconf{
		dispatcher: d,
		opts:       opts,
		logger:     opts.Logger.With(zap.String("backend", BackendZeroconf)),
		ctx:        ctx,
		cancel:     cancel,
	}
	z.newResolver = z.zeroconfResolver
	return z
}

// zeroconf resolvers shut their connections down once a query context
// ends, so every browse and lookup gets its own.
func (z *Zeroconf) zeroconfResolver() (resolver, error) {
	opts := []zeroconf.ClientOption{zeroconf.SelectIPTraffic(zeroconf.IPv4)}
	if z.opts.Interface != nil {
		opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*z.opts.Interface}))
	}
	return zeroconf.NewResolver(opts...)
}

// Browse listens for serviceType for one browse window
func (z *Zeroconf) Browse(serviceType, domain string, events discovery.Events) error {
	if z.ctx.Err() != nil {
		return ErrClosed
	}

	r, err := z.newResolver()
	if err != nil {
		return fmt.Errorf("zeroconf resolver: %w", err)
	}

	z.mu.Lock()
	if z.browseCancel != nil {
		z.browseCancel()
	}
	// browseCtx ends only on CancelBrowse or Close; the window elapsing is a
	// natural end and still reports the last entry
	browseCtx, cancel := context.WithCancel(z.ctx)
	z.browseCancel = cancel
	z.events = events
	z.mu.Unlock()

	ctx, stop := context.WithTimeout(browseCtx, z.opts.BrowseWindow)

	raw := make(chan *zeroconf.ServiceEntry, 32)
	if err := r.Browse(ctx, trimDot(serviceType), trimDot(domain), raw); err != nil {
		stop()
		cancel()
		return fmt.Errorf("zeroconf browse: %w", err)
	}

	z.logger.Debug("browsing", zap.String("service", serviceType), zap.String("domain", domain))

	entries := make(chan *Entry, 32)

	z.wg.Add(2)
	go func() {
		defer z.wg.Done()
		defer close(entries)

		for se := range raw {
			entries <- fromZeroconf(se, serviceType, domain, events)
		}
	}()

	go func() {
		defer z.wg.Done()
		defer stop()

		n := relay(browseCtx, z.dispatcher, events, entries)
		z.logger.Debug("browse ended", zap.Int("found", n))
	}()

	return nil
}

// Resolve reports h as resolved when it already carries an IPv4 address,
// otherwise looks the instance up until the timeout elapses.
func (z *Zeroconf) Resolve(h discovery.Handle, timeout time.Duration) {
	e, ok := h.(*Entry)
	if !ok || e.events == nil {
		z.mu.Lock()
		events := z.events
		z.mu.Unlock()
		deliverFailed(z.dispatcher, events, h, ErrForeignHandle)
		return
	}

	if e.hasIPv4() {
		deliverResolved(z.dispatcher, e.events, e)
		return
	}

	z.wg.Add(1)
	go func() {
		defer z.wg.Done()

		if err := z.lookup(e, timeout); err != nil {
			z.dispatcher.Dispatch(func() { e.events.ServiceResolutionFailed(e, err) })
			return
		}
		z.dispatcher.Dispatch(func() { e.events.ServiceResolved(e) })
	}()
}

// CancelBrowse stops the running browse, if any
func (z *Zeroconf) CancelBrowse() {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.browseCancel != nil {
		z.browseCancel()
		z.browseCancel = nil
	}
}

// Close cancels all queries and waits for them to return
func (z *Zeroconf) Close() error {
	z.cancel()
	z.wg.Wait()
	return nil
}

func (z *Zeroconf) lookup(e *Entry, timeout time.Duration) error {
	r, err := z.newResolver()
	if err != nil {
		return fmt.Errorf("zeroconf resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(z.ctx, timeout)
	defer cancel()

	raw := make(chan *zeroconf.ServiceEntry, 8)
	if err := r.Lookup(ctx, e.instance, trimDot(e.service), trimDot(e.domain), raw); err != nil {
		return fmt.Errorf("zeroconf lookup: %w", err)
	}

	for se := range raw {
		if se.Instance != e.instance {
			continue
		}
		e.update(se.HostName, firstIPv4(se.AddrIPv4), se.Port, se.Text)
		if e.hasIPv4() {
			cancel()
		}
	}

	if !e.hasIPv4() {
		return ErrNotResolved
	}
	return nil
}

func fromZeroconf(se *zeroconf.ServiceEntry, service, domain string, events discovery.Events) *Entry {
	e := NewEntry(se.Instance, service, domain)
	e.events = events
	e.update(se.HostName, firstIPv4(se.AddrIPv4), se.Port, se.Text)
	return e
}

func firstIPv4(ips []net.IP) net.IP {
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
