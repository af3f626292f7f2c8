// Package gate holds the single-flight state shared by the remote-call stages.
package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/screen-narrator/internal/syncx"
	"github.com/GriffinCanCode/screen-narrator/internal/trace"
)

// Outcome is the result of one gate submission.
type Outcome int

const (
	Skipped  Outcome = iota // another call was in flight; submission dropped
	Empty                   // call succeeded with nothing new
	Appended                // call succeeded and new entries were stored
	Deferred                // not enough input yet; no call was made
	Failed                  // call failed; nothing was stored
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Empty:
		return "empty"
	case Appended:
		return "appended"
	case Deferred:
		return "deferred"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureHook observes failed calls.
type FailureHook func(gate string, err error)

// Status is a point-in-time view of a gate.
type Status struct {
	Name         string    `json:"name"`
	InFlight     bool      `json:"in_flight"`
	LastSuccess  time.Time `json:"last_success,omitzero"`
	LastIdentity string    `json:"last_identity,omitempty"`
	Successes    uint64    `json:"successes"`
	Failures     uint64    `json:"failures"`
	Skips        uint64    `json:"skips"`
}

// State admits one call at a time and records the last success.
type State struct {
	name   string
	flight syncx.Flight
	onFail atomic.Pointer[FailureHook]

	successes atomic.Uint64
	failures  atomic.Uint64
	skips     atomic.Uint64

	mu           sync.RWMutex
	lastSuccess  time.Time
	lastIdentity string
}

// NewState creates the state for the gate called name.
func NewState(name string) *State {
	return &State{name: name}
}

// Name returns the gate name.
func (s *State) Name() string { return s.name }

// OnFailure installs a hook called after every failed call.
func (s *State) OnFailure(fn FailureHook) {
	s.onFail.Store(&fn)
}

// TryEnter takes the flight, or logs and counts a skip when it is held.
func (s *State) TryEnter(ctx context.Context) bool {
	if s.flight.TryAcquire() {
		return true
	}
	s.skips.Add(1)
	trace.Logger(ctx).Info("call in flight, dropping submission", "gate", s.name)
	return false
}

// Exit releases the flight.
func (s *State) Exit() {
	s.flight.Release()
}

// InFlight reports whether a call is running.
func (s *State) InFlight() bool {
	return s.flight.InFlight()
}

// Succeeded records a successful call identified by id.
func (s *State) Succeeded(id string) {
	s.successes.Add(1)
	s.mu.Lock()
	s.lastSuccess = time.Now()
	s.lastIdentity = id
	s.mu.Unlock()
}

// Failed logs err and notifies the failure hook.
func (s *State) Failed(ctx context.Context, err error) {
	s.failures.Add(1)
	trace.Logger(ctx).Warn("gate call failed", "gate", s.name, "error", err)
	if fn := s.onFail.Load(); fn != nil {
		(*fn)(s.name, err)
	}
}

// Status returns a snapshot of the gate.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Name:         s.name,
		InFlight:     s.flight.InFlight(),
		LastSuccess:  s.lastSuccess,
		LastIdentity: s.lastIdentity,
		Successes:    s.successes.Load(),
		Failures:     s.failures.Load(),
		Skips:        s.skips.Load(),
	}
}
