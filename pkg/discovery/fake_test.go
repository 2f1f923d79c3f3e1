// ABOUTME: Test doubles for the discovery facility
// ABOUTME: Records browse/resolve requests and lets tests emit callbacks
package discovery

import (
	"time"
)

type fakeHandle struct {
	name string
	addr []byte
	port int
}

func (h *fakeHandle) Name() string       { return h.name }
func (h *fakeHandle) RawAddress() []byte { return h.addr }
func (h *fakeHandle) Port() int          { return h.port }

func newHandle(name string, addr []byte, port int) *fakeHandle {
	return &fakeHandle{name: name, addr: addr, port: port}
}

type browseCall struct {
	serviceType string
	domain      string
}

type fakeFacility struct {
	events    Events
	browseErr error

	browses  []browseCall
	resolves []Handle
	timeouts []time.Duration
	cancels  int
}

func (f *fakeFacility) Browse(serviceType, domain string, events Events) error {
	if f.browseErr != nil {
		return f.browseErr
	}
	f.events = events
	f.browses = append(f.browses, browseCall{serviceType: serviceType, domain: domain})
	return nil
}

func (f *fakeFacility) Resolve(h Handle, timeout time.Duration) {
	f.resolves = append(f.resolves, h)
	f.timeouts = append(f.timeouts, timeout)
}

func (f *fakeFacility) CancelBrowse() {
	f.cancels++
}

// recorder captures every caller-visible signal
type recorder struct {
	resolved           []ServiceRecord
	noServices         int
	discoveryFinished  [][]Handle
	resolutionFinished [][]Handle
	order              []string
}

func (r *recorder) config() Config {
	return Config{
		OnNoServicesFound: func() {
			r.noServices++
			r.order = append(r.order, "none")
		},
		OnDiscoveryFinished: func(all []Handle) {
			r.discoveryFinished = append(r.discoveryFinished, all)
			r.order = append(r.order, "discovery")
		},
		OnResolutionFinished: func(all []Handle) {
			r.resolutionFinished = append(r.resolutionFinished, all)
			r.order = append(r.order, "resolution")
		},
	}
}

func (r *recorder) onResolved(rec ServiceRecord) {
	r.resolved = append(r.resolved, rec)
}
