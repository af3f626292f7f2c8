package speech

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/trace"
)

// Synthesizer streams speech audio for a line.
type Synthesizer interface {
	Stream(ctx context.Context, text, voice string) (io.ReadCloser, error)
}

// AudioSink plays a PCM stream to completion.
type AudioSink interface {
	Play(ctx context.Context, pcm io.Reader) error
}

// FailureHook observes lines that failed to play.
type FailureHook func(line string, err error)

// Config tunes playback.
type Config struct {
	Voice   string
	Timeout time.Duration // per line, synthesis and playback together
}

// Player speaks queued lines strictly in order on a single worker.
type Player struct {
	synth  Synthesizer
	sink   AudioSink
	ducker *Ducker
	cfg    Config
	onFail FailureHook

	mu      sync.Mutex
	queue   []string
	stopped bool
	signal  chan struct{}

	cancel context.CancelFunc
	done   chan struct{}

	played atomic.Uint64
	failed atomic.Uint64
}

// NewPlayer creates a player. ducker may be nil.
func NewPlayer(synth Synthesizer, sink AudioSink, ducker *Ducker, cfg Config) *Player {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if ducker == nil {
		ducker = NewDucker(nil)
	}
	return &Player{
		synth:  synth,
		sink:   sink,
		ducker: ducker,
		cfg:    cfg,
		signal: make(chan struct{}, 1),
	}
}

// OnFailure installs a hook called for each line that fails. Set before Start.
func (p *Player) OnFailure(fn FailureHook) { p.onFail = fn }

// Start launches the playback worker.
func (p *Player) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil || p.stopped {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)
}

// Enqueue adds line to the end of the queue. Lines enqueued after Stop are dropped.
func (p *Player) Enqueue(line string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, line)
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Pending returns the number of lines waiting to play.
func (p *Player) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Played returns how many lines finished playing.
func (p *Player) Played() uint64 { return p.played.Load() }

// Failed returns how many lines failed.
func (p *Player) Failed() uint64 { return p.failed.Load() }

// Stop cancels the current line, drops the queue, and waits for the worker.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.queue = nil
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *Player) run(ctx context.Context) {
	defer close(p.done)
	for {
		line, ok := p.next(ctx)
		if !ok {
			return
		}
		if err := p.play(ctx, line); err != nil {
			p.failed.Add(1)
			if ctx.Err() != nil {
				return
			}
			trace.Logger(ctx).Warn("playback failed, skipping line", "error", err)
			if p.onFail != nil {
				p.onFail(line, err)
			}
			continue
		}
		p.played.Add(1)
	}
}

// next pops the oldest line, waiting for one if the queue is empty.
func (p *Player) next(ctx context.Context) (string, bool) {
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			line := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return line, true
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", false
		case <-p.signal:
		}
	}
}

func (p *Player) play(ctx context.Context, line string) error {
	ctx, span := trace.StartSpan(ctx, "playback")
	defer span.End()
	span.SetAttr("chars", len(line))

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	release := p.ducker.Acquire(ctx)
	defer release()

	stream, err := p.synth.Stream(ctx, line, p.cfg.Voice)
	if err != nil {
		err = apperrors.Wrap(err, apperrors.CodeTTSFailed, "synthesize line")
		span.Fail(err)
		return err
	}
	defer stream.Close()

	if err := p.sink.Play(ctx, stream); err != nil {
		err = apperrors.Wrap(err, apperrors.CodePlaybackFailed, "play line")
		span.Fail(err)
		return err
	}
	return nil
}
