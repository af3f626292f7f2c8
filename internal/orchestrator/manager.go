package orchestrator

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/GriffinCanCode/screen-narrator/internal/audio"
	"github.com/GriffinCanCode/screen-narrator/internal/config"
	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/inference"
	"github.com/GriffinCanCode/screen-narrator/internal/journal"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/extraction"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/gate"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/screen"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/speech"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/summary"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
	"github.com/GriffinCanCode/screen-narrator/internal/resilience"
	screencap "github.com/GriffinCanCode/screen-narrator/internal/screen"
	"github.com/GriffinCanCode/screen-narrator/internal/trace"
)

// FailureEvent reports a failed remote call or playback.
type FailureEvent struct {
	Component string    `json:"component"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Deps are the external collaborators the pipeline runs against.
// Nil Synth or Sink disables speech; a nil Mixer disables ducking; a nil
// Journal keeps history in memory only.
type Deps struct {
	Vision     extraction.VisionClient
	Summarizer summary.Summarizer
	Synth      speech.Synthesizer
	Sink       speech.AudioSink
	Mixer      speech.Mixer
	Capturer   screencap.Capturer
	Journal    journal.Journal
	Breakers   []*resilience.Breaker
}

// SpeechStatus summarizes the playback queue.
type SpeechStatus struct {
	Enabled bool   `json:"enabled"`
	Pending int    `json:"pending"`
	Played  uint64 `json:"played"`
	Failed  uint64 `json:"failed"`
	Ducked  bool   `json:"ducked"`
}

// BreakerStatus is the state of one remote-service breaker.
type BreakerStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Status is a snapshot of the whole pipeline.
type Status struct {
	Capturing     bool              `json:"capturing"`
	Region        *screencap.Region `json:"region"`
	Threshold     int               `json:"hash_threshold"`
	TextEntries   int               `json:"text_entries"`
	DialogEntries int               `json:"dialog_entries"`
	Gates         []gate.Status     `json:"gates"`
	Speech        SpeechStatus      `json:"speech"`
	Breakers      []BreakerStatus   `json:"breakers"`
}

// Manager coordinates all pipeline stages
type Manager struct {
	cfg *config.Config

	selection  *screencap.Selection
	capturer   screencap.Capturer
	text       *transcript.TextStore
	dialog     *transcript.DialogLog
	journal    journal.Journal
	extraction *extraction.Gate
	summary    *summary.Gate
	player     *speech.Player
	ducker     *speech.Ducker
	screenProc *screen.Processor
	breakers   []*resilience.Breaker
	closers    []io.Closer

	failures chan FailureEvent

	mu       sync.Mutex
	runCtx   context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// forced holds forced captures; Stop takes it exclusively before waiting on the gates.
	forced  sync.RWMutex
	stopped bool
}

// New builds the production pipeline from cfg: remote clients, the audio
// device, the platform mixer and screen grabber, and the configured journal.
func New(ctx context.Context, cfg *config.Config) (*Manager, error) {
	log := trace.Logger(ctx)

	client, err := inference.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Vision:     client.Vision,
		Summarizer: client.Summarizer,
		Capturer:   screencap.New(),
		Breakers:   client.Breakers(),
	}

	var closers []io.Closer
	if cfg.SpeechEnabled && client.Speech != nil {
		player, err := audio.NewPlayer(cfg.TTSSampleRate)
		if err != nil {
			log.Error("audio output unavailable, speech disabled", "error", err)
		} else {
			deps.Synth = client.Speech
			deps.Sink = player
			closers = append(closers, player)
		}
	}
	if cfg.DuckingEnabled {
		deps.Mixer = audio.NewMixer()
	}

	j, err := journal.Open(cfg.JournalBackend, cfg.OutputDir)
	if err != nil {
		log.Error("journal unavailable, history kept in memory only", "error", err)
	} else {
		deps.Journal = j
	}

	m := NewWithDeps(cfg, deps)
	m.closers = append(m.closers, closers...)
	return m, nil
}

// NewWithDeps wires the pipeline around deps.
func NewWithDeps(cfg *config.Config, deps Deps) *Manager {
	m := &Manager{
		cfg:       cfg,
		selection: screencap.NewSelection(cfg.RegionFile),
		capturer:  deps.Capturer,
		text:      transcript.NewTextStore(TextEventBuffer),
		dialog:    transcript.NewDialogLog(DialogEventBuffer),
		journal:   deps.Journal,
		breakers:  deps.Breakers,
		failures:  make(chan FailureEvent, FailureEventBuffer),
		stopCh:    make(chan struct{}),
	}

	if m.journal != nil {
		journal.Attach(m.journal, m.text, m.dialog)
	}

	var speaker summary.Speaker
	m.ducker = speech.NewDucker(deps.Mixer)
	if deps.Synth != nil && deps.Sink != nil {
		m.player = speech.NewPlayer(deps.Synth, deps.Sink, m.ducker, speech.Config{
			Voice:   cfg.VoiceID,
			Timeout: cfg.TTSTimeout,
		})
		m.player.OnFailure(func(line string, err error) {
			m.reportFailure("speech", err)
		})
		speaker = m.player
	}

	m.summary = summary.New(deps.Summarizer, m.text, m.dialog, speaker, summary.Config{
		MinChars: cfg.SummaryMinChars,
		Timeout:  cfg.SummaryTimeout,
	})
	if m.journal != nil {
		m.summary.SetRecorder(m.journal.RecordSummary)
	}

	m.extraction = extraction.New(deps.Vision, m.text, m.summary, extraction.Config{
		ContextEntries: cfg.ContextEntries,
		Similarity:     cfg.DedupSimilarity,
		Timeout:        cfg.OCRTimeout,
	})

	onFail := func(name string, err error) { m.reportFailure(name, err) }
	m.extraction.State().OnFailure(onFail)
	m.summary.State().OnFailure(onFail)

	m.screenProc = screen.NewProcessor(m.selection, m.capturer, screen.NewDetector(cfg.HashThreshold), m.extraction)
	m.screenProc.SetCapturing(cfg.CaptureOnStartup)

	for _, b := range m.breakers {
		b.WithHook(func(_, to resilience.State) {
			if to == resilience.Open {
				m.reportFailure(b.Name(), apperrors.Newf(apperrors.CodeUnavailable, "%s service failing, pausing calls", b.Name()))
			}
		})
	}
	return m
}

func (m *Manager) reportFailure(component string, err error) {
	evt := FailureEvent{
		Component: component,
		Code:      string(apperrors.CodeOf(err)),
		Message:   err.Error(),
		Timestamp: time.Now(),
	}
	select {
	case m.failures <- evt:
	default:
	}
}

// Start loads the persisted region, begins watching it, starts the player,
// and launches the capture loop.
func (m *Manager) Start(ctx context.Context) error {
	log := trace.Logger(ctx)

	if err := m.selection.Load(); err != nil {
		log.Warn("region file unreadable, waiting for a selection", "error", err)
	}
	if r, ok := m.selection.Region(); ok {
		log.Info("capture region loaded", "region", r.String())
	} else {
		log.Info("no capture region selected")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.runCtx, m.cancel = ctx, cancel
	m.mu.Unlock()

	if m.cfg.RegionFile != "" {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.selection.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("region file watch stopped", "error", err)
			}
		}()
	}

	if m.player != nil {
		m.player.Start(ctx)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.screenProc.Run(ctx, m.cfg.CaptureInterval, m.stopCh)
	}()

	log.Info("pipeline started",
		"interval", m.cfg.CaptureInterval,
		"threshold", m.cfg.HashThreshold,
		"capturing", m.screenProc.Capturing(),
		"speech", m.player != nil)
	return nil
}

// Stop cancels in-flight calls, stops playback, restores the microphone, and
// closes the journal and devices. It is safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		log := trace.Logger(context.Background())
		m.forced.Lock()
		m.stopped = true
		m.forced.Unlock()
		close(m.stopCh)

		m.mu.Lock()
		cancel := m.cancel
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		if m.player != nil {
			m.player.Stop()
		}
		restoreCtx, done := context.WithTimeout(context.Background(), RestoreTimeout)
		m.ducker.ReleaseAll(restoreCtx)
		done()

		m.wg.Wait()
		m.extraction.Wait()
		m.summary.Wait()

		if m.journal != nil {
			if err := m.journal.Close(); err != nil {
				log.Warn("journal close failed", "error", err)
			}
		}
		if m.capturer != nil {
			m.capturer.Close()
		}
		for _, c := range m.closers {
			if err := c.Close(); err != nil {
				log.Warn("device close failed", "error", err)
			}
		}
		log.Info("pipeline stopped")
	})
}

// TextEvents returns the channel of newly appended text entries.
func (m *Manager) TextEvents() <-chan transcript.TextEntry { return m.text.Events() }

// DialogEvents returns the channel of newly appended dialog entries.
func (m *Manager) DialogEvents() <-chan transcript.DialogEntry { return m.dialog.Events() }

// FailureEvents returns the channel of failure notifications.
func (m *Manager) FailureEvents() <-chan FailureEvent { return m.failures }

// Text returns the full captured-text history.
func (m *Manager) Text() []transcript.TextEntry { return m.text.All() }

// Dialog returns the full dialog history.
func (m *Manager) Dialog() []transcript.DialogEntry { return m.dialog.All() }

// CaptureNow runs one capture cycle immediately. Calls it starts outlive ctx
// and are bounded by the pipeline's lifetime instead.
func (m *Manager) CaptureNow(ctx context.Context) screen.TickResult {
	m.forced.RLock()
	defer m.forced.RUnlock()
	if m.stopped {
		return screen.TickIdle
	}

	m.mu.Lock()
	run := m.runCtx
	m.mu.Unlock()
	if run == nil {
		run = context.WithoutCancel(ctx)
	} else if tc, ok := trace.FromContext(ctx); ok {
		run = trace.WithContext(run, tc)
	}
	return m.screenProc.Tick(run)
}

// LatestFrame returns the last frame accepted for extraction.
func (m *Manager) LatestFrame() (screencap.Frame, bool) { return m.screenProc.LatestFrame() }

// SetCapturing pauses or resumes the capture loop.
func (m *Manager) SetCapturing(enabled bool) {
	m.screenProc.SetCapturing(enabled)
	trace.Logger(context.Background()).Info("capturing state changed", "enabled", enabled)
}

// Capturing reports whether the capture loop is active.
func (m *Manager) Capturing() bool { return m.screenProc.Capturing() }

// Region returns the selected capture region.
func (m *Manager) Region() (screencap.Region, bool) { return m.selection.Region() }

// SetRegion selects and persists a capture region.
func (m *Manager) SetRegion(r screencap.Region) error { return m.selection.Set(r) }

// ClearRegion deselects the capture region.
func (m *Manager) ClearRegion() error { return m.selection.Clear() }

// Status returns a snapshot of the pipeline.
func (m *Manager) Status() Status {
	st := Status{
		Capturing:     m.screenProc.Capturing(),
		Threshold:     m.screenProc.Detector().Threshold(),
		TextEntries:   m.text.Len(),
		DialogEntries: m.dialog.Len(),
		Gates:         []gate.Status{m.extraction.State().Status(), m.summary.State().Status()},
		Speech:        SpeechStatus{Ducked: m.ducker.Muted()},
	}
	if r, ok := m.selection.Region(); ok {
		st.Region = &r
	}
	if m.player != nil {
		st.Speech.Enabled = true
		st.Speech.Pending = m.player.Pending()
		st.Speech.Played = m.player.Played()
		st.Speech.Failed = m.player.Failed()
	}
	for _, b := range m.breakers {
		st.Breakers = append(st.Breakers, BreakerStatus{Name: b.Name(), State: b.State().String()})
	}
	return st
}

// Export writes the session to a Word document under the output directory
// and returns its path.
func (m *Manager) Export() (string, error) {
	path := journal.ExportPath(filepath.Join(m.cfg.OutputDir, ExportDir), time.Now())
	if err := journal.ExportDocx(path, m.text.All(), m.dialog.All()); err != nil {
		return "", err
	}
	return path, nil
}
