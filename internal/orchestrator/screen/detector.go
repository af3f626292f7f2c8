package screen

import (
	"log/slog"
	"sync"

	"github.com/corona10/goimagehash"
)

// Detector accepts frames whose fingerprint moved more than a threshold away
// from the last accepted one.
type Detector struct {
	mu           sync.Mutex
	threshold    int
	lastAccepted *goimagehash.ImageHash
}

// NewDetector creates a change detector. A negative threshold falls back to the default.
func NewDetector(threshold int) *Detector {
	if threshold < 0 {
		threshold = DefaultHashThreshold
	}
	return &Detector{threshold: threshold}
}

// Threshold returns the configured distance threshold.
func (d *Detector) Threshold() int { return d.threshold }

// ShouldProcess reports whether fp differs enough from the last accepted
// fingerprint. The first frame is always accepted, and so is a frame whose
// distance cannot be computed.
func (d *Detector) ShouldProcess(fp *goimagehash.ImageHash) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastAccepted == nil {
		d.lastAccepted = fp
		return true
	}

	dist, err := d.lastAccepted.Distance(fp)
	if err != nil {
		slog.Debug("fingerprint comparison failed, treating as change", "error", err)
		d.lastAccepted = fp
		return true
	}

	if dist > d.threshold {
		d.lastAccepted = fp
		return true
	}

	slog.Debug("skipping similar frame", "distance", dist, "threshold", d.threshold)
	return false
}

// Reset forgets the last accepted fingerprint so the next frame is accepted.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.lastAccepted = nil
	d.mu.Unlock()
}
