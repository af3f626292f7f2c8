package speech

import (
	"context"
	"log/slog"
	"sync"
)

// Mixer controls the microphone input level.
type Mixer interface {
	InputVolume(ctx context.Context) (int, error)
	SetInputVolume(ctx context.Context, level int) error
	MuteInput(ctx context.Context) error
	UnmuteInput(ctx context.Context) error
}

// Ducker mutes the microphone while any hold is active and restores the
// original level when the last hold is released.
type Ducker struct {
	mixer Mixer

	mu       sync.Mutex
	depth    int
	original int
	muted    bool
}

// NewDucker creates a ducker. A nil mixer disables ducking.
func NewDucker(mixer Mixer) *Ducker {
	return &Ducker{mixer: mixer}
}

// Acquire takes a hold, muting the microphone if this is the first one. The
// returned release is safe to call more than once; only the first call counts.
func (d *Ducker) Acquire(ctx context.Context) (release func()) {
	d.mu.Lock()
	d.depth++
	if d.depth == 1 {
		d.mute(ctx)
	}
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			// Playback may have been cancelled; restoring must still happen.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			d.release(rctx)
		})
	}
}

// ReleaseAll drops every hold and restores the microphone if it is muted.
func (d *Ducker) ReleaseAll(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depth = 0
	if d.muted {
		d.restore(ctx)
	}
}

// Muted reports whether the microphone is currently held muted.
func (d *Ducker) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

// Depth returns the number of active holds.
func (d *Ducker) Depth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.depth
}

func (d *Ducker) release(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.depth == 0 {
		return // already cleared by ReleaseAll
	}
	d.depth--
	if d.depth == 0 && d.muted {
		d.restore(ctx)
	}
}

// mute runs with mu held.
func (d *Ducker) mute(ctx context.Context) {
	if d.mixer == nil {
		return
	}
	vol, err := d.mixer.InputVolume(ctx)
	if err != nil {
		slog.Warn("reading microphone volume failed, playing without ducking", "error", err)
		return
	}
	if err := d.mixer.MuteInput(ctx); err != nil {
		slog.Warn("muting microphone failed, playing without ducking", "error", err)
		return
	}
	d.original = vol
	d.muted = true
	slog.Debug("microphone muted", "volume", vol)
}

// restore runs with mu held. The hold is cleared even if the mixer fails so a
// later acquire reads a fresh volume.
func (d *Ducker) restore(ctx context.Context) {
	d.muted = false
	if err := d.mixer.SetInputVolume(ctx, d.original); err != nil {
		slog.Warn("restoring microphone volume failed", "volume", d.original, "error", err)
	}
	if err := d.mixer.UnmuteInput(ctx); err != nil {
		slog.Warn("unmuting microphone failed", "error", err)
	}
	slog.Debug("microphone restored", "volume", d.original)
}
