// ABOUTME: Discovery session state machine
// ABOUTME: Owns the browse lifecycle, timeout, discovered list and pending resolutions
package discovery

import (
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds both the wait for a first service and each resolution
const DefaultTimeout = 10 * time.Second

// Phase is the lifecycle state of a Session
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSearching
	PhaseDraining // browse ended, resolutions outstanding
	PhaseDisposed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSearching:
		return "searching"
	case PhaseDraining:
		return "draining"
	case PhaseDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Config holds session configuration and the optional callback slots.
// A nil callback is a no-op.
type Config struct {
	Timeout    time.Duration
	Dispatcher Dispatcher // delivers timer events on the owning context
	Clock      clock.Clock
	Logger     *zap.Logger
	Observer   Observer

	// OnNoServicesFound fires when the timeout elapses before any discovery
	OnNoServicesFound func()

	// OnDiscoveryFinished receives every discovered handle once browsing ends
	OnDiscoveryFinished func(discovered []Handle)

	// OnResolutionFinished fires once per search after the browse ended and
	// every submitted resolution reported back
	OnResolutionFinished func(discovered []Handle)

	// Selector picks which discovered handles get resolved. Nil resolves all.
	Selector func(h Handle) bool
}

// Session drives one search at a time against a Facility. It performs no
// locking: all methods, facility callbacks included, must run on a single
// context (see Loop).
type Session struct {
	facility   Facility
	config     Config
	clock      clock.Clock
	dispatcher Dispatcher
	observer   Observer
	logger     *zap.Logger
	log        *zap.Logger

	id         uuid.UUID
	phase      Phase
	discovered []Handle
	tracker    *Tracker
	onResolved func(ServiceRecord)
	finished   bool

	timer    *clock.Timer
	timerGen uint64
}

var _ Events = (*Session)(nil)

// NewSession creates an idle session driving facility
func NewSession(facility Facility, config Config) *Session {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Dispatcher == nil {
		config.Dispatcher = Inline
	}
	if config.Observer == nil {
		config.Observer = nopObserver{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Session{
		facility:   facility,
		config:     config,
		clock:      config.Clock,
		dispatcher: config.Dispatcher,
		observer:   config.Observer,
		logger:     config.Logger,
		log:        config.Logger,
		tracker:    NewTracker(),
	}
}

// Start begins a search for serviceType in domain. onResolved is invoked
// for every selected service that resolves successfully.
func (s *Session) Start(serviceType, domain string, onResolved func(ServiceRecord)) error {
	switch s.phase {
	case PhaseIdle:
	case PhaseDisposed:
		return ErrDisposed
	default:
		return ErrAlreadySearching
	}

	if s.facility == nil {
		return ErrNoFacility
	}

	st, err := NormalizeServiceType(serviceType)
	if err != nil {
		return err
	}
	dom, err := NormalizeDomain(domain)
	if err != nil {
		return err
	}

	s.id = uuid.New()
	s.log = s.logger.With(
		zap.String("session", s.id.String()),
		zap.String("type", st),
		zap.String("domain", dom),
	)

	s.discovered = nil
	s.tracker.Reset()
	s.finished = false
	s.onResolved = onResolved
	s.phase = PhaseSearching
	s.armTimeout()

	s.observer.SessionStarted(st, dom)
	s.log.Info("starting discovery", zap.Duration("timeout", s.config.Timeout))

	if err := s.facility.Browse(st, dom, s); err != nil {
		s.cancelTimeout()
		s.phase = PhaseIdle
		s.log.Warn("browse failed to start", zap.Error(err))
		return &Error{Op: "browse", Err: err}
	}

	return nil
}

// ServiceDiscovered handles a browse result
func (s *Session) ServiceDiscovered(h Handle, moreComing bool) {
	if s.phase != PhaseSearching {
		s.log.Debug("ignoring discovery outside a search",
			zap.String("name", h.Name()), zap.Stringer("phase", s.phase))
		return
	}

	if len(s.discovered) == 0 {
		s.cancelTimeout()
	}
	s.discovered = append(s.discovered, h)
	s.observer.ServiceDiscovered(h.Name())

	s.log.Debug("found service", zap.String("name", h.Name()), zap.Bool("more_coming", moreComing))

	if s.shouldResolve(h) {
		s.tracker.Begin(h)
		s.facility.Resolve(h, s.config.Timeout)
	}

	if !moreComing {
		s.browseEnded()
	}
}

// ServiceResolved handles a successful resolution
func (s *Session) ServiceResolved(h Handle) {
	if !s.IsSearching() || !s.tracker.Contains(h) {
		s.log.Debug("ignoring stale resolution", zap.String("name", h.Name()))
		return
	}

	rec := NewServiceRecord(h)
	s.log.Info("service resolved",
		zap.String("name", rec.Name),
		zap.String("address", rec.Address),
		zap.Int("port", rec.Port))
	s.observer.ServiceResolved(rec)

	if s.onResolved != nil {
		s.onResolved(rec)
	}

	s.completeResolution(h)
}

// ServiceResolutionFailed handles a failed resolution. The caller's
// per-service callback is not invoked.
func (s *Session) ServiceResolutionFailed(h Handle, err error) {
	if !s.IsSearching() || !s.tracker.Contains(h) {
		s.log.Debug("ignoring stale resolution failure", zap.String("name", h.Name()))
		return
	}

	s.log.Info("service did not resolve", zap.String("name", h.Name()), zap.Error(err))
	s.observer.ResolutionFailed(h.Name(), err)

	s.completeResolution(h)
}

// BrowseFailed records a facility level browse error. The session stays
// in its current phase and can be recovered with Stop and Start.
func (s *Session) BrowseFailed(err error) {
	s.log.Warn("browse error", zap.Error(err), zap.Stringer("phase", s.phase))
}

// Stop cancels the timeout and browsing. Outstanding resolutions are not
// cancelled; their callbacks are ignored. Safe to call repeatedly.
func (s *Session) Stop() {
	s.cancelTimeout()
	if !s.IsSearching() {
		return
	}

	s.facility.CancelBrowse()
	s.phase = PhaseIdle
	s.log.Info("discovery stopped",
		zap.Int("discovered", len(s.discovered)),
		zap.Int("pending", s.tracker.Len()))
}

// Dispose stops the session and clears its results. The session rejects
// Start until Reset is called.
func (s *Session) Dispose() {
	s.Stop()
	s.discovered = nil
	s.tracker.Reset()
	s.onResolved = nil
	s.phase = PhaseDisposed
}

// Reset makes a disposed session usable again
func (s *Session) Reset() {
	if s.phase == PhaseDisposed {
		s.phase = PhaseIdle
	}
}

// IsSearching reports whether a search is in progress
func (s *Session) IsSearching() bool {
	return s.phase == PhaseSearching || s.phase == PhaseDraining
}

// Phase returns the current lifecycle phase
func (s *Session) Phase() Phase {
	return s.phase
}

// ID identifies the most recent search, uuid.Nil before the first Start
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Discovered returns a copy of the handles found by the current search
func (s *Session) Discovered() []Handle {
	return slices.Clone(s.discovered)
}

// Pending returns the number of outstanding resolutions
func (s *Session) Pending() int {
	return s.tracker.Len()
}

func (s *Session) shouldResolve(h Handle) bool {
	if s.config.Selector == nil {
		return true
	}
	return s.config.Selector(h)
}

func (s *Session) browseEnded() {
	s.log.Info("discovery finished", zap.Int("discovered", len(s.discovered)))
	if s.config.OnDiscoveryFinished != nil {
		s.config.OnDiscoveryFinished(slices.Clone(s.discovered))
	}

	// the callback may have stopped the session
	if s.phase != PhaseSearching {
		return
	}

	s.facility.CancelBrowse()

	if s.tracker.IsEmpty() {
		s.finish()
		return
	}

	s.phase = PhaseDraining
	s.log.Debug("waiting for resolutions", zap.Int("pending", s.tracker.Len()))
}

func (s *Session) completeResolution(h Handle) {
	empty := s.tracker.Complete(h)
	if !empty {
		s.log.Debug("services left to resolve", zap.Int("pending", s.tracker.Len()))
		return
	}
	if s.phase == PhaseDraining {
		s.finish()
	}
}

func (s *Session) finish() {
	if s.finished {
		return
	}
	s.finished = true
	s.phase = PhaseIdle

	s.log.Info("resolution finished", zap.Int("discovered", len(s.discovered)))
	s.observer.SessionFinished(len(s.discovered))

	if s.config.OnResolutionFinished != nil {
		s.config.OnResolutionFinished(slices.Clone(s.discovered))
	}
}

func (s *Session) armTimeout() {
	s.cancelTimeout()
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(s.config.Timeout, func() {
		s.dispatcher.Dispatch(func() { s.handleTimeout(gen) })
	})
}

// cancelTimeout stops the armed timer and invalidates any fire already in flight
func (s *Session) cancelTimeout() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Session) handleTimeout(gen uint64) {
	if gen != s.timerGen || s.phase != PhaseSearching || len(s.discovered) > 0 {
		return
	}
	s.timer = nil

	s.log.Info("no services found", zap.Duration("timeout", s.config.Timeout))
	s.observer.NoServicesFound()

	if s.config.OnNoServicesFound != nil {
		s.config.OnNoServicesFound()
	}

	s.Stop()
}
