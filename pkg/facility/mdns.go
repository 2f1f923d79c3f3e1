// ABOUTME: hashicorp/mdns backed discovery facility
// ABOUTME: Browses with timed queries and resolves by re-querying for an instance
package facility

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

type queryFunc func(ctx context.Context, params *mdns.QueryParam) error

// MDNS implements discovery.Facility with github.com/hashicorp/mdns
type MDNS struct {
	dispatcher discovery.Dispatcher
	opts       Options
	logger     *zap.Logger
	query      queryFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	browseCancel context.CancelFunc
	events       discovery.Events
}

var _ Closer = (*MDNS)(nil)

// NewMDNS creates an mDNS facility delivering events through d
func NewMDNS(d discovery.Dispatcher, opts Options) *MDNS {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &MDNS{
		dispatcher: d,
		opts:       opts,
		logger:     opts.Logger.With(zap.String("backend", BackendMDNS)),
		query:      mdns.QueryContext,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Browse queries for serviceType for one browse window. A running browse
// is cancelled first.
func (m *MDNS) Browse(serviceType, domain string, events discovery.Events) error {
	if m.ctx.Err() != nil {
		return ErrClosed
	}

	m.mu.Lock()
	if m.browseCancel != nil {
		m.browseCancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.browseCancel = cancel
	m.events = events
	m.mu.Unlock()

	raw := make(chan *mdns.ServiceEntry, 32)
	entries := make(chan *Entry, 32)

	params := m.params(serviceType, domain, m.opts.BrowseWindow, raw)

	m.logger.Debug("browsing", zap.String("service", serviceType), zap.String("domain", domain))

	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		defer close(raw)

		if err := m.query(ctx, params); err != nil && ctx.Err() == nil {
			m.logger.Warn("browse query failed", zap.Error(err))
			m.dispatcher.Dispatch(func() { events.BrowseFailed(fmt.Errorf("mdns browse: %w", err)) })
		}
	}()

	go func() {
		defer m.wg.Done()
		defer close(entries)

		for se := range raw {
			entries <- fromMDNS(se, serviceType, domain, events)
		}
	}()

	go func() {
		defer m.wg.Done()
		n := relay(ctx, m.dispatcher, events, entries)
		m.logger.Debug("browse ended", zap.Int("found", n))
	}()

	return nil
}

// Resolve reports h as resolved right away when its browse answer carried
// an IPv4 address, otherwise it queries again until one shows up or the
// timeout elapses.
func (m *MDNS) Resolve(h discovery.Handle, timeout time.Duration) {
	e, ok := h.(*Entry)
	if !ok || e.events == nil {
		m.mu.Lock()
		events := m.events
		m.mu.Unlock()
		deliverFailed(m.dispatcher, events, h, ErrForeignHandle)
		return
	}

	if e.hasIPv4() {
		deliverResolved(m.dispatcher, e.events, e)
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		if m.lookup(e, timeout) {
			m.dispatcher.Dispatch(func() { e.events.ServiceResolved(e) })
			return
		}
		m.dispatcher.Dispatch(func() { e.events.ServiceResolutionFailed(e, ErrNotResolved) })
	}()
}

// CancelBrowse stops the running browse, if any
func (m *MDNS) CancelBrowse() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browseCancel != nil {
		m.browseCancel()
		m.browseCancel = nil
	}
}

// Close cancels all queries and waits for them to return
func (m *MDNS) Close() error {
	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *MDNS) lookup(e *Entry, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(m.ctx, timeout)
	defer cancel()

	raw := make(chan *mdns.ServiceEntry, 32)
	params := m.params(e.service, e.domain, timeout, raw)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(raw)
		if err := m.query(ctx, params); err != nil && ctx.Err() == nil {
			m.logger.Debug("resolve query failed", zap.String("name", e.instance), zap.Error(err))
		}
	}()

	found := false
	for se := range raw {
		if found || instanceName(se.Name, e.service, e.domain) != e.instance {
			continue
		}
		e.update(se.Host, se.AddrV4, se.Port, se.InfoFields)
		if e.hasIPv4() {
			found = true
			cancel()
		}
	}
	<-done

	return found
}

func (m *MDNS) params(service, domain string, timeout time.Duration, entries chan *mdns.ServiceEntry) *mdns.QueryParam {
	return &mdns.QueryParam{
		Service:     trimDot(service),
		Domain:      trimDot(domain),
		Timeout:     timeout,
		Interface:   m.opts.Interface,
		Entries:     entries,
		DisableIPv6: true,
	}
}

func fromMDNS(se *mdns.ServiceEntry, service, domain string, events discovery.Events) *Entry {
	e := NewEntry(instanceName(se.Name, service, domain), service, domain)
	e.events = events
	e.update(se.Host, se.AddrV4, se.Port, se.InfoFields)
	return e
}
