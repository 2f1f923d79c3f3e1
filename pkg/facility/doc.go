// ABOUTME: Network discovery facilities for the discovery package
// ABOUTME: Provides hashicorp/mdns and grandcat/zeroconf backends plus an advertiser
// Package facility implements discovery.Facility on top of multicast DNS
// libraries.
//
// Two backends are available: MDNS (github.com/hashicorp/mdns) and
// Zeroconf (github.com/grandcat/zeroconf). Both deliver every callback
// through the supplied discovery.Dispatcher so a Session only ever sees
// events on its own context.
//
// Example:
//
//	fac, err := facility.New(facility.BackendMDNS, loop, facility.Options{
//	    BrowseWindow: 3 * time.Second,
//	})
//	defer fac.Close()
//
// Advertiser publishes a service so it can be found by a browse:
//
//	adv, err := facility.Advertise(facility.AdvertiseConfig{
//	    Instance: "Living Room",
//	    Service:  "_http._tcp",
//	    Port:     8080,
//	})
//	defer adv.Shutdown()
package facility
