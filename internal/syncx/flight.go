package syncx

import "sync/atomic"

// Flight admits at most one holder at a time. Contenders are turned away, never
// queued: TryAcquire fails instead of waiting.
type Flight struct {
	busy atomic.Bool
}

// TryAcquire takes the flight if it is free.
func (f *Flight) TryAcquire() bool {
	return f.busy.CompareAndSwap(false, true)
}

// Release frees the flight. Releasing a free flight is a no-op.
func (f *Flight) Release() {
	f.busy.Store(false)
}

// InFlight reports whether the flight is held.
func (f *Flight) InFlight() bool {
	return f.busy.Load()
}
