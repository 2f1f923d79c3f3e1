// ABOUTME: Shared test helpers for facility tests
// ABOUTME: Queue dispatcher and an event recorder standing in for a session
package facility

import (
	"testing"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
)

type discoveredEvent struct {
	name       string
	moreComing bool
}

// eventRecorder is only touched from the goroutine draining the queue
type eventRecorder struct {
	discovered  []discoveredEvent
	handles     []discovery.Handle
	resolved    []discovery.Handle
	failed      map[string]error
	browseFails []error
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{failed: make(map[string]error)}
}

func (r *eventRecorder) ServiceDiscovered(h discovery.Handle, moreComing bool) {
	r.discovered = append(r.discovered, discoveredEvent{name: h.Name(), moreComing: moreComing})
	r.handles = append(r.handles, h)
}

func (r *eventRecorder) ServiceResolved(h discovery.Handle) {
	r.resolved = append(r.resolved, h)
}

func (r *eventRecorder) ServiceResolutionFailed(h discovery.Handle, err error) {
	r.failed[h.Name()] = err
}

func (r *eventRecorder) BrowseFailed(err error) {
	r.browseFails = append(r.browseFails, err)
}

type queue chan func()

func (q queue) Dispatch(fn func()) { q <- fn }

// run executes n dispatched events on the calling goroutine
func (q queue) run(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case fn := <-q:
			fn()
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d events, got %d", n, i)
		}
	}
}

// idle asserts nothing else gets dispatched for a short while
func (q queue) idle(t *testing.T) {
	t.Helper()
	select {
	case <-q:
		t.Fatal("unexpected event")
	case <-time.After(50 * time.Millisecond):
	}
}
