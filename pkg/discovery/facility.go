// ABOUTME: Contracts between the session and the network discovery facility
// ABOUTME: Defines Handle, Facility, Events, Dispatcher and Observer
package discovery

import "time"

// Handle identifies one advertised service instance reported by a Facility.
// Implementations must be comparable (typically a pointer) because handles
// are used as set keys.
type Handle interface {
	Name() string
	RawAddress() []byte
	Port() int
}

// Facility performs the actual network browse and per-service resolution
type Facility interface {
	// Browse starts discovering services of serviceType in domain. Every
	// found service is reported via events.ServiceDiscovered, the last one
	// of a natural browse end with moreComing == false.
	Browse(serviceType, domain string, events Events) error

	// Resolve requests an address for a previously discovered handle. Exactly
	// one of ServiceResolved or ServiceResolutionFailed follows.
	Resolve(h Handle, timeout time.Duration)

	// CancelBrowse stops browsing, best effort
	CancelBrowse()
}

// Events receives facility callbacks. All methods must be invoked on the
// session's owning context.
type Events interface {
	ServiceDiscovered(h Handle, moreComing bool)
	ServiceResolved(h Handle)
	ServiceResolutionFailed(h Handle, err error)
	BrowseFailed(err error)
}

// Dispatcher delivers fn on the session's owning context
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatchFunc adapts a function to the Dispatcher interface
type DispatchFunc func(fn func())

// Dispatch calls f(fn)
func (f DispatchFunc) Dispatch(fn func()) {
	f(fn)
}

// Inline runs every dispatched function immediately on the caller's
// goroutine. Only suitable when the caller already serializes all events.
var Inline Dispatcher = DispatchFunc(func(fn func()) { fn() })

// Observer receives instrumentation hooks from a Session. It is not a
// result channel: callers learn outcomes from the Config callbacks.
type Observer interface {
	SessionStarted(serviceType, domain string)
	ServiceDiscovered(name string)
	ServiceResolved(rec ServiceRecord)
	ResolutionFailed(name string, err error)
	NoServicesFound()
	SessionFinished(discovered int)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(string, string)  {}
func (nopObserver) ServiceDiscovered(string)       {}
func (nopObserver) ServiceResolved(ServiceRecord)  {}
func (nopObserver) ResolutionFailed(string, error) {}
func (nopObserver) NoServicesFound()               {}
func (nopObserver) SessionFinished(int)            {}
