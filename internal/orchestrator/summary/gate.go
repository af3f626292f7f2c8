// Package summary folds newly captured text into spoken dialog lines.
package summary

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/gate"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
	"github.com/GriffinCanCode/screen-narrator/internal/trace"
)

// Summarizer produces new dialog lines from captured text and prior dialog.
type Summarizer interface {
	Summarize(ctx context.Context, captured string, previous []string) ([]string, error)
}

// Speaker queues a line for playback.
type Speaker interface {
	Enqueue(line string)
}

// Recorder persists each successful summary alongside the text it came from.
type Recorder func(captured string, dialog []string) error

// Config tunes the gate.
type Config struct {
	MinChars int           // minimum accumulated text before calling out
	Timeout  time.Duration // per-call limit
}

// Gate admits one summarization call at a time. It tracks a cursor into the
// TextStore so each call sees all text captured since the last success.
type Gate struct {
	state      *gate.State
	summarizer Summarizer
	text       *transcript.TextStore
	dialog     *transcript.DialogLog
	speaker    Speaker
	recorder   Recorder
	cfg        Config
	cursor     atomic.Int64
	wg         sync.WaitGroup
}

// New creates a summarization gate. speaker may be nil.
func New(summarizer Summarizer, text *transcript.TextStore, dialog *transcript.DialogLog, speaker Speaker, cfg Config) *Gate {
	if cfg.MinChars < 0 {
		cfg.MinChars = DefaultMinChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Gate{
		state:      gate.NewState("summarization"),
		summarizer: summarizer,
		text:       text,
		dialog:     dialog,
		speaker:    speaker,
		cfg:        cfg,
	}
}

// SetRecorder installs the summary journal hook.
func (g *Gate) SetRecorder(r Recorder) { g.recorder = r }

// State exposes the gate's flight state.
func (g *Gate) State() *gate.State { return g.state }

// Cursor returns the TextStore position covered by the last successful call.
func (g *Gate) Cursor() int { return int(g.cursor.Load()) }

// Submit runs summarization synchronously. newEntries is the trigger; the call
// covers everything captured since the last success, which includes them.
func (g *Gate) Submit(ctx context.Context, newEntries []transcript.TextEntry) (gate.Outcome, error) {
	if !g.state.TryEnter(ctx) {
		return gate.Skipped, nil
	}
	defer g.state.Exit()
	return g.run(ctx, newEntries)
}

// Go starts summarization in the background, returning false if dropped.
func (g *Gate) Go(ctx context.Context, newEntries []transcript.TextEntry) bool {
	if !g.state.TryEnter(ctx) {
		return false
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.state.Exit()
		_, _ = g.run(ctx, newEntries)
	}()
	return true
}

// Wait blocks until background calls started by Go have returned.
func (g *Gate) Wait() {
	g.wg.Wait()
}

func (g *Gate) run(ctx context.Context, newEntries []transcript.TextEntry) (gate.Outcome, error) {
	ctx, span := trace.StartSpan(ctx, "summarization")
	defer span.End()

	cursor := g.Cursor()
	pending := g.text.Since(cursor)
	end := cursor + len(pending)
	captured := transcript.JoinLines(pending)
	span.SetAttr("trigger_entries", len(newEntries))
	span.SetAttr("pending_entries", len(pending))

	if chars := utf8.RuneCountInString(strings.TrimSpace(captured)); chars < g.cfg.MinChars {
		trace.Logger(ctx).Debug("not enough text to summarize yet", "chars", chars, "min", g.cfg.MinChars)
		return gate.Deferred, nil
	}

	previous := g.dialog.Lines()

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	lines, err := g.summarizer.Summarize(callCtx, captured, previous)
	if err != nil {
		err = apperrors.Wrap(err, apperrors.CodeSummaryFailed, "summarize")
		span.Fail(err)
		g.state.Failed(ctx, err)
		return gate.Failed, err
	}

	g.cursor.Store(int64(end))
	g.state.Succeeded(strconv.Itoa(end))

	fresh := newLines(lines, previous)
	span.SetAttr("dialog_lines", len(fresh))
	if len(fresh) == 0 {
		trace.Logger(ctx).Debug("nothing new worth saying")
		return gate.Empty, nil
	}

	if g.recorder != nil {
		if err := g.recorder(captured, fresh); err != nil {
			trace.Logger(ctx).Warn("summary journal write failed", "error", err)
		}
	}

	now := time.Now()
	for _, line := range fresh {
		g.dialog.Append(transcript.DialogEntry{Lines: []string{line}, Timestamp: now})
	}
	if g.speaker != nil {
		for _, line := range fresh {
			g.speaker.Enqueue(line)
		}
	}
	trace.Logger(ctx).Info("new dialog", "lines", len(fresh))
	return gate.Appended, nil
}

// newLines trims the response and drops lines already spoken.
func newLines(lines, previous []string) []string {
	seen := transcript.NewSeen(previous)
	var fresh []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || seen.Has(line) {
			continue
		}
		seen.Add(line)
		fresh = append(fresh, line)
	}
	return fresh
}
