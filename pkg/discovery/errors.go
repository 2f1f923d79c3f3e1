// ABOUTME: Error values returned by the discovery session
// ABOUTME: Sentinels plus an operation-tagged wrapper
package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadySearching is returned by Start while a search is active
	ErrAlreadySearching = errors.New("discovery: already searching")

	// ErrDisposed is returned by Start after Dispose
	ErrDisposed = errors.New("discovery: session disposed")

	// ErrInvalidServiceType is returned for malformed service types or domains
	ErrInvalidServiceType = errors.New("discovery: invalid service type")

	// ErrNoFacility is returned when a session has no facility to drive
	ErrNoFacility = errors.New("discovery: no facility")
)

// Error ties a failure to the operation that produced it
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("discovery: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
