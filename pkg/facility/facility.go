// ABOUTME: Backend selection and shared options for discovery facilities
// ABOUTME: Creates an MDNS or Zeroconf facility by name
package facility

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"go.uber.org/zap"
)

// Backend names
const (
	BackendMDNS     = "mdns"
	BackendZeroconf = "zeroconf"
)

// DefaultBrowseWindow is how long a single browse listens for answers
const DefaultBrowseWindow = 3 * time.Second

var (
	// ErrUnknownBackend is returned by New for unsupported backend names
	ErrUnknownBackend = errors.New("facility: unknown backend")

	// ErrForeignHandle is reported when a handle was not produced by this package
	ErrForeignHandle = errors.New("facility: handle not created by this facility")

	// ErrNotResolved is reported when no IPv4 address was found in time
	ErrNotResolved = errors.New("facility: no IPv4 address resolved")

	// ErrClosed is returned by Browse after Close
	ErrClosed = errors.New("facility: closed")
)

// Options configures a facility
type Options struct {
	// BrowseWindow bounds one browse; the last result is reported with
	// moreComing == false when it elapses
	BrowseWindow time.Duration

	// Interface restricts queries to one network interface
	Interface *net.Interface

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.BrowseWindow <= 0 {
		o.BrowseWindow = DefaultBrowseWindow
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Bounded returns o with a browse window shorter than timeout. The last
// browse result is held until the window closes, so a window reaching the
// session timeout would report a found service after "no services found".
func (o Options) Bounded(timeout time.Duration) Options {
	if timeout <= 0 {
		return o
	}
	if o.BrowseWindow <= 0 {
		o.BrowseWindow = DefaultBrowseWindow
	}
	if o.BrowseWindow >= timeout {
		o.BrowseWindow = timeout / 2
	}
	return o
}

// Closer is a discovery.Facility that owns background resources
type Closer interface {
	discovery.Facility
	Close() error
}

// New creates the facility named by backend
func New(backend string, d discovery.Dispatcher, opts Options) (Closer, error) {
	switch backend {
	case BackendMDNS, "":
		return NewMDNS(d, opts), nil
	case BackendZeroconf:
		return NewZeroconf(d, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// deliver dispatches fn from a fresh goroutine. Facility methods run on the
// session's context, so dispatching inline could block on a full loop queue.
func deliver(d discovery.Dispatcher, fn func()) {
	go d.Dispatch(fn)
}

func deliverResolved(d discovery.Dispatcher, events discovery.Events, h discovery.Handle) {
	if events == nil {
		return
	}
	deliver(d, func() { events.ServiceResolved(h) })
}

func deliverFailed(d discovery.Dispatcher, events discovery.Events, h discovery.Handle, err error) {
	if events == nil {
		return
	}
	deliver(d, func() { events.ServiceResolutionFailed(h, err) })
}
