// ABOUTME: Translates discovery session signals into view updates
// ABOUTME: Owns the user-facing status messages
package ui

import (
	"fmt"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
)

// Status messages shown to the user
const (
	MessageDiscovering = "Discovering.."
	MessageNoServices  = "No services were found on the network"
	MessageCancelled   = "Discovery has been cancelled"
)

// FoundMessage is shown once browsing ends
func FoundMessage(n int) string {
	return fmt.Sprintf("Found %d services", n)
}

// Presenter drives a View from session events
type Presenter struct {
	view View
}

// NewPresenter creates a presenter for view
func NewPresenter(view View) *Presenter {
	return &Presenter{view: view}
}

// DiscoveryStarted shows the loading state for a new search
func (p *Presenter) DiscoveryStarted() {
	p.view.ClearServices()
	p.view.ShowLoading(true)
	p.view.ShowMessage(MessageDiscovering)
}

// DiscoveryFailed reports a search that could not start
func (p *Presenter) DiscoveryFailed(err error) {
	p.view.ShowLoading(false)
	p.view.ShowMessage(fmt.Sprintf("Discovery failed: %v", err))
}

// DiscoveryCancelled reports a search stopped by the user
func (p *Presenter) DiscoveryCancelled() {
	p.view.ShowLoading(false)
	p.view.ShowMessage(MessageCancelled)
}

// NoServicesFound reports a search that timed out empty
func (p *Presenter) NoServicesFound() {
	p.view.ShowLoading(false)
	p.view.ShowMessage(MessageNoServices)
}

// DiscoveryFinished reports the browse result. Loading stays on while
// resolutions are outstanding.
func (p *Presenter) DiscoveryFinished(discovered []discovery.Handle) {
	p.view.ShowMessage(FoundMessage(len(discovered)))
}

// ResolutionFinished ends the loading state
func (p *Presenter) ResolutionFinished(discovered []discovery.Handle) {
	p.view.ShowLoading(false)
}

// ServiceResolved adds a resolved service to the view
func (p *Presenter) ServiceResolved(rec discovery.ServiceRecord) {
	p.view.ShowService(rec)
}
