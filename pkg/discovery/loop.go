// ABOUTME: Single goroutine event loop for session callbacks
// ABOUTME: Serializes facility, timer and caller events onto one context
package discovery

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopClosed is returned by Call once the loop has stopped running
var ErrLoopClosed = errors.New("discovery: loop closed")

// Loop runs queued functions one at a time on a single goroutine. It is
// the owning context a Session requires.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	doneOnce sync.Once
}

// NewLoop creates a loop with room for size queued events
func NewLoop(size int) *Loop {
	if size < 1 {
		size = 1
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Run processes queued functions until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	defer l.doneOnce.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// Dispatch queues fn. Functions queued after the loop stopped are dropped.
// Must not be called from inside the loop while the queue is full.
func (l *Loop) Dispatch(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Call runs fn on the loop and waits for it to return. Calling it from
// inside the loop deadlocks.
func (l *Loop) Call(fn func()) error {
	wait := make(chan struct{})
	l.Dispatch(func() {
		defer close(wait)
		fn()
	})

	select {
	case <-wait:
		return nil
	case <-l.done:
		select {
		case <-wait:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// Done is closed when Run returns
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
