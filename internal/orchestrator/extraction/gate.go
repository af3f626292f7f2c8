// Package extraction turns accepted frames into new TextStore entries.
package extraction

import (
	"context"
	"strings"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/gate"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
	screencap "github.com/GriffinCanCode/screen-narrator/internal/screen"
	"github.com/GriffinCanCode/screen-narrator/internal/trace"
)

// VisionClient reads text from a screenshot.
type VisionClient interface {
	ExtractText(ctx context.Context, image []byte, mimeType string, recent []string) ([]string, error)
}

// Notifier is told about newly appended entries without blocking.
type Notifier interface {
	Go(ctx context.Context, entries []transcript.TextEntry) bool
}

// Config tunes the gate.
type Config struct {
	ContextEntries int           // entries of recent text sent with each frame
	Similarity     float64       // near-duplicate threshold; 0 disables
	Timeout        time.Duration // per-call limit
}

// Gate admits one extraction call at a time. Frames arriving while a call is
// running are dropped, never queued.
type Gate struct {
	state  *gate.State
	vision VisionClient
	store  *transcript.TextStore
	next   Notifier
	cfg    Config
	wg     sync.WaitGroup
}

// New creates an extraction gate. next may be nil.
func New(vision VisionClient, store *transcript.TextStore, next Notifier, cfg Config) *Gate {
	if cfg.ContextEntries <= 0 {
		cfg.ContextEntries = DefaultContextEntries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Gate{
		state:  gate.NewState("extraction"),
		vision: vision,
		store:  store,
		next:   next,
		cfg:    cfg,
	}
}

// State exposes the gate's flight state.
func (g *Gate) State() *gate.State { return g.state }

// Submit runs extraction for frame synchronously.
func (g *Gate) Submit(ctx context.Context, frame screencap.Frame) (gate.Outcome, error) {
	if !g.state.TryEnter(ctx) {
		return gate.Skipped, nil
	}
	defer g.state.Exit()
	return g.run(ctx, frame)
}

// Go starts extraction for frame in the background. It returns false when the
// frame was dropped because a call is already running.
func (g *Gate) Go(ctx context.Context, frame screencap.Frame) bool {
	if !g.state.TryEnter(ctx) {
		return false
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.state.Exit()
		_, _ = g.run(ctx, frame)
	}()
	return true
}

// Wait blocks until background calls started by Go have returned.
func (g *Gate) Wait() {
	g.wg.Wait()
}

func (g *Gate) run(ctx context.Context, frame screencap.Frame) (gate.Outcome, error) {
	ctx = trace.WithCycle(ctx, frame.ID.String())
	ctx, span := trace.StartSpan(ctx, "extraction")
	defer span.End()

	recent := g.store.RecentContext(g.cfg.ContextEntries)

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	lines, err := g.vision.ExtractText(callCtx, frame.Image, frame.MIMEType(), recent)
	if err != nil {
		err = apperrors.Wrap(err, apperrors.CodeOCRFailed, "extract text")
		span.Fail(err)
		g.state.Failed(ctx, err)
		return gate.Failed, err
	}
	g.state.Succeeded(frame.ID.String())

	var tail []string
	if last, ok := g.store.Last(); ok {
		tail = last.Lines
	}
	fresh := Filter(lines, tail, recent, g.cfg.Similarity)
	span.SetAttr("returned", len(lines))
	span.SetAttr("fresh", len(fresh))
	if len(fresh) == 0 {
		trace.Logger(ctx).Debug("no new text in frame", "returned", len(lines))
		return gate.Empty, nil
	}

	entry := transcript.TextEntry{Lines: fresh, Timestamp: time.Now(), FrameID: frame.ID}
	g.store.Append(entry)
	trace.Logger(ctx).Info("captured new text", "lines", len(fresh))

	if g.next != nil {
		g.next.Go(ctx, []transcript.TextEntry{entry})
	}
	return gate.Appended, nil
}

// Filter keeps the lines worth storing: trimmed, non-empty, not the
// no-new-messages sentinel, not already in the tail entry, not repeated within
// the batch, and not a near-duplicate of recent context.
func Filter(lines, tail, recent []string, similarity float64) []string {
	seen := transcript.NewSeen(tail)

	var normRecent []string
	if similarity > 0 {
		normRecent = make([]string, 0, len(recent))
		for _, r := range recent {
			normRecent = append(normRecent, transcript.Normalize(r))
		}
	}

	var fresh []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, NoNewMessages) {
			continue
		}
		if seen.Has(line) {
			continue
		}
		if nearDuplicate(transcript.Normalize(line), normRecent, similarity) {
			continue
		}
		seen.Add(line)
		fresh = append(fresh, line)
	}
	return fresh
}

func nearDuplicate(norm string, recent []string, similarity float64) bool {
	for _, r := range recent {
		if transcript.Similar(norm, r, similarity) {
			return true
		}
	}
	return false
}
