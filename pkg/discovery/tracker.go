// ABOUTME: Pending resolution bookkeeping
// ABOUTME: Tracks handles submitted for resolution until each one reports back
package discovery

// Tracker holds the set of handles whose resolution is still outstanding.
// It is owned by a Session and shares its single-context rule.
type Tracker struct {
	pending map[Handle]struct{}
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		pending: make(map[Handle]struct{}),
	}
}

// Begin marks h as pending. Adding a handle twice is a no-op.
func (t *Tracker) Begin(h Handle) {
	t.pending[h] = struct{}{}
}

// Complete removes h and reports whether nothing is pending any more.
// Removing an unknown handle leaves the set untouched.
func (t *Tracker) Complete(h Handle) bool {
	delete(t.pending, h)
	return len(t.pending) == 0
}

// Contains reports whether h is pending
func (t *Tracker) Contains(h Handle) bool {
	_, ok := t.pending[h]
	return ok
}

// IsEmpty reports whether no resolution is outstanding
func (t *Tracker) IsEmpty() bool {
	return len(t.pending) == 0
}

// Len returns the number of pending handles
func (t *Tracker) Len() int {
	return len(t.pending)
}

// Reset drops every pending handle
func (t *Tracker) Reset() {
	clear(t.pending)
}
