package screen

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	screencap "github.com/GriffinCanCode/screen-narrator/internal/screen"
	"github.com/GriffinCanCode/screen-narrator/internal/trace"
)

// RegionSource reports the currently selected capture region.
type RegionSource interface {
	Region() (screencap.Region, bool)
}

// FrameSink takes an accepted frame without blocking. It returns false when
// the frame was dropped because the sink is busy.
type FrameSink interface {
	Go(ctx context.Context, frame screencap.Frame) bool
}

// TickResult describes what one capture cycle did.
type TickResult int

const (
	TickIdle      TickResult = iota // paused or no region selected
	TickFailed                      // grab or decode failed
	TickUnchanged                   // frame too similar to the last accepted one
	TickDropped                     // frame accepted but the sink was busy
	TickSubmitted                   // frame handed to the sink
)

func (r TickResult) String() string {
	switch r {
	case TickIdle:
		return "idle"
	case TickFailed:
		return "failed"
	case TickUnchanged:
		return "unchanged"
	case TickDropped:
		return "dropped"
	case TickSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Processor grabs the selected region on a fixed period and forwards changed
// frames to the extraction stage.
type Processor struct {
	regions   RegionSource
	capturer  screencap.Capturer
	hasher    Hasher
	detector  *Detector
	sink      FrameSink
	capturing atomic.Bool

	mu         sync.RWMutex
	latest     *screencap.Frame
	lastRegion screencap.Region
	tickMu     sync.Mutex
}

// NewProcessor creates a capture scheduler. Capturing starts enabled.
func NewProcessor(regions RegionSource, capturer screencap.Capturer, detector *Detector, sink FrameSink) *Processor {
	p := &Processor{
		regions:  regions,
		capturer: capturer,
		detector: detector,
		sink:     sink,
	}
	p.capturing.Store(true)
	return p
}

// Run ticks every interval until ctx is cancelled or stopCh is closed.
func (p *Processor) Run(ctx context.Context, interval time.Duration, stopCh <-chan struct{}) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one capture cycle. Overlapping ticks are serialized so the
// detector sees frames in capture order.
func (p *Processor) Tick(ctx context.Context) TickResult {
	if !p.capturing.Load() {
		return TickIdle
	}
	region, ok := p.regions.Region()
	if !ok {
		return TickIdle
	}

	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	ctx, span := trace.StartSpan(ctx, "capture.tick")
	defer span.End()
	span.SetAttr("region", region.String())

	if region != p.lastRegion {
		// A new region starts a fresh comparison chain.
		p.detector.Reset()
		p.lastRegion = region
	}

	data, err := p.capturer.Capture(ctx, region)
	if err != nil {
		span.Fail(err)
		trace.Logger(ctx).Warn("screen capture failed", "error", err)
		return TickFailed
	}

	hash, format, err := p.hasher.Hash(data)
	if err != nil {
		span.Fail(err)
		trace.Logger(ctx).Warn("frame hashing failed", "error", err)
		return TickFailed
	}

	if !p.detector.ShouldProcess(hash) {
		span.SetAttr("result", TickUnchanged.String())
		return TickUnchanged
	}

	frame := screencap.Frame{
		ID:          uuid.New(),
		Image:       data,
		Format:      format,
		CapturedAt:  time.Now(),
		Region:      region,
		Fingerprint: hash,
	}
	p.mu.Lock()
	p.latest = &frame
	p.mu.Unlock()

	result := TickSubmitted
	if !p.sink.Go(ctx, frame) {
		result = TickDropped
	}
	span.SetAttr("frame_id", frame.ID.String())
	span.SetAttr("result", result.String())
	return result
}

// LatestFrame returns the most recently accepted frame.
func (p *Processor) LatestFrame() (screencap.Frame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return screencap.Frame{}, false
	}
	return *p.latest, true
}

// SetCapturing pauses or resumes capture without stopping the loop.
func (p *Processor) SetCapturing(enabled bool) {
	p.capturing.Store(enabled)
}

// Capturing reports whether ticks currently capture.
func (p *Processor) Capturing() bool {
	return p.capturing.Load()
}

// Detector returns the change detector.
func (p *Processor) Detector() *Detector { return p.detector }
