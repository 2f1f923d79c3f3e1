// ABOUTME: LAN service discovery and resolution package
// ABOUTME: Drives a browse/resolve facility and reports resolved services
// Package discovery runs the lifecycle of a service search on the local
// network: it starts a browse, tracks announced services, resolves a
// selected subset of them, enforces a timeout and reports terminal signals.
//
// The network side is provided by a Facility (see the facility package for
// mDNS backends). A Session is not safe for concurrent use: every call into
// it, including facility and timer callbacks, must run on the same context.
// Loop provides such a context.
//
// Example:
//
//	loop := discovery.NewLoop(64)
//	go loop.Run(ctx)
//
//	fac := facility.NewMDNS(loop, facility.Options{})
//	sess := discovery.NewSession(fac, discovery.Config{
//	    Dispatcher: loop,
//	    OnResolutionFinished: func(all []discovery.Handle) {
//	        fmt.Printf("done, %d services seen\n", len(all))
//	    },
//	})
//
//	loop.Call(func() {
//	    sess.Start(discovery.ServiceHTTP, discovery.LocalDomain, func(rec discovery.ServiceRecord) {
//	        fmt.Printf("Found: %s at %s\n", rec.Name, rec.Address)
//	    })
//	})
package discovery
