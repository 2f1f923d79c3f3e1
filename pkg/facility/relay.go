// ABOUTME: Turns a stream of browse results into session discovery events
// ABOUTME: Holds one entry back so the last one carries moreComing == false
package facility

import (
	"context"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
)

// relay forwards entries from in until it is closed. Instances already seen
// in this browse are dropped. The final entry is only reported when the
// browse ended on its own, not when ctx was cancelled.
func relay(ctx context.Context, d discovery.Dispatcher, events discovery.Events, in <-chan *Entry) int {
	seen := make(map[string]struct{})
	var held *Entry

	for e := range in {
		if _, dup := seen[e.instance]; dup {
			continue
		}
		seen[e.instance] = struct{}{}

		if held != nil && ctx.Err() == nil {
			h := held
			d.Dispatch(func() { events.ServiceDiscovered(h, true) })
		}
		held = e
	}

	if held != nil && ctx.Err() == nil {
		d.Dispatch(func() { events.ServiceDiscovered(held, false) })
	}

	return len(seen)
}
