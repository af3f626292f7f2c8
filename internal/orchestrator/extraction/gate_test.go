package extraction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/gate"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
	screencap "github.com/GriffinCanCode/screen-narrator/internal/screen"
)

type visionCall struct {
	mimeType string
	recent   []string
}

type mockVision struct {
	mu      sync.Mutex
	calls   []visionCall
	replies [][]string
	err     error
	block   chan struct{} // when set, calls wait for it to close
	started chan struct{}
}

func (m *mockVision) ExtractText(ctx context.Context, _ []byte, mimeType string, recent []string) ([]string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, visionCall{mimeType: mimeType, recent: recent})
	block, started := m.block, m.started
	var reply []string
	if len(m.replies) > 0 {
		reply = m.replies[0]
		m.replies = m.replies[1:]
	}
	err := m.err
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return reply, err
}

func (m *mockVision) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockNotifier struct {
	mu      sync.Mutex
	batches [][]transcript.TextEntry
}

func (m *mockNotifier) Go(_ context.Context, entries []transcript.TextEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, entries)
	return true
}

func newFrame() screencap.Frame {
	return screencap.Frame{ID: uuid.New(), Image: []byte{1}, Format: "png", CapturedAt: time.Now()}
}

func newTestGate(vision *mockVision) (*Gate, *transcript.TextStore, *mockNotifier) {
	store := transcript.NewTextStore(10)
	next := &mockNotifier{}
	g := New(vision, store, next, Config{ContextEntries: 10, Similarity: 0.8, Timeout: time.Second})
	return g, store, next
}

func TestSubmitAppendsOneEntry(t *testing.T) {
	vision := &mockVision{replies: [][]string{{"alice: standup in 5", "bob: omw"}}}
	g, store, next := newTestGate(vision)
	frame := newFrame()

	outcome, err := g.Submit(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, gate.Appended, outcome)

	entries := store.All()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"alice: standup in 5", "bob: omw"}, entries[0].Lines)
	assert.Equal(t, frame.ID, entries[0].FrameID)

	require.Len(t, next.batches, 1)
	assert.Equal(t, entries, next.batches[0])
	assert.Equal(t, "image/png", vision.calls[0].mimeType)
	assert.Equal(t, frame.ID.String(), g.State().Status().LastIdentity)
}

func TestSubmitPassesRecentContext(t *testing.T) {
	vision := &mockVision{replies: [][]string{{"first line here"}, {"second line there"}}}
	g, _, _ := newTestGate(vision)

	_, err := g.Submit(context.Background(), newFrame())
	require.NoError(t, err)
	_, err = g.Submit(context.Background(), newFrame())
	require.NoError(t, err)

	assert.Empty(t, vision.calls[0].recent)
	assert.Equal(t, []string{"first line here"}, vision.calls[1].recent)
}

func TestEmptyResponseNoMutation(t *testing.T) {
	vision := &mockVision{replies: [][]string{{}}}
	g, store, next := newTestGate(vision)

	outcome, err := g.Submit(context.Background(), newFrame())
	require.NoError(t, err)
	assert.Equal(t, gate.Empty, outcome)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, next.batches, "summarization must not be triggered")
}

func TestSentinelCountsAsEmpty(t *testing.T) {
	vision := &mockVision{replies: [][]string{{"NO_NEW_MESSAGES", "  "}}}
	g, store, next := newTestGate(vision)

	outcome, err := g.Submit(context.Background(), newFrame())
	require.NoError(t, err)
	assert.Equal(t, gate.Empty, outcome)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, next.batches)
}

func TestMalformedResponseReleasesGate(t *testing.T) {
	vision := &mockVision{err: apperrors.New(apperrors.CodeLLMInvalidResponse, "response is not a JSON object")}
	g, store, next := newTestGate(vision)

	var hookErr error
	g.State().OnFailure(func(_ string, err error) { hookErr = err })

	outcome, err := g.Submit(context.Background(), newFrame())
	assert.Equal(t, gate.Failed, outcome)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeOCRFailed))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMInvalidResponse))
	assert.Equal(t, err, hookErr)
	assert.False(t, g.State().InFlight())
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, next.batches)

	// The next tick submits normally.
	vision.mu.Lock()
	vision.err = nil
	vision.replies = [][]string{{"recovered"}}
	vision.mu.Unlock()

	outcome, err = g.Submit(context.Background(), newFrame())
	require.NoError(t, err)
	assert.Equal(t, gate.Appended, outcome)
	assert.Equal(t, 1, store.Len())
}

func TestOverlappingSubmissionDropped(t *testing.T) {
	vision := &mockVision{
		replies: [][]string{{"only once"}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	g, store, _ := newTestGate(vision)
	ctx := context.Background()

	require.True(t, g.Go(ctx, newFrame()))
	<-vision.started

	assert.False(t, g.Go(ctx, newFrame()), "second submission should be dropped while the first is in flight")
	outcome, err := g.Submit(ctx, newFrame())
	require.NoError(t, err)
	assert.Equal(t, gate.Skipped, outcome)

	close(vision.block)
	g.Wait()

	assert.Equal(t, 1, vision.callCount())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, uint64(2), g.State().Status().Skips)
	assert.False(t, g.State().InFlight())
}

func TestTimeoutIsFailure(t *testing.T) {
	vision := &mockVision{block: make(chan struct{})}
	store := transcript.NewTextStore(10)
	g := New(vision, store, nil, Config{Timeout: 20 * time.Millisecond})

	outcome, err := g.Submit(context.Background(), newFrame())
	assert.Equal(t, gate.Failed, outcome)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, g.State().InFlight())
}

func TestTailDuplicatesDropped(t *testing.T) {
	vision := &mockVision{replies: [][]string{
		{"alice: deploy is green", "bob: nice"},
		{"Alice: deploy is green!", "carol: shipping now"},
		{"bob: NICE"},
	}}
	g, store, _ := newTestGate(vision)
	g.cfg.Similarity = 0
	ctx := context.Background()

	_, _ = g.Submit(ctx, newFrame())
	outcome, err := g.Submit(ctx, newFrame())
	require.NoError(t, err)
	assert.Equal(t, gate.Appended, outcome)

	// Only the tail entry is compared when near-duplicate filtering is off.
	outcome, err = g.Submit(ctx, newFrame())
	require.NoError(t, err)
	assert.Equal(t, gate.Appended, outcome)

	entries := store.All()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"carol: shipping now"}, entries[1].Lines)
	assert.Equal(t, []string{"bob: NICE"}, entries[2].Lines)
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name       string
		lines      []string
		tail       []string
		recent     []string
		similarity float64
		expected   []string
	}{
		{
			name:     "trims and drops blanks",
			lines:    []string{"  hi there ", "", "\t"},
			expected: []string{"hi there"},
		},
		{
			name:     "sentinel any case",
			lines:    []string{"no_new_messages"},
			expected: nil,
		},
		{
			name:     "punctuation only",
			lines:    []string{"...", "!!!"},
			expected: []string{"...", "!!!"},
		},
		{
			name:     "emoji only lines kept",
			lines:    []string{"👍", "🎉🎉", "hello"},
			expected: []string{"👍", "🎉🎉", "hello"},
		},
		{
			name:     "emoji repeats compared raw",
			lines:    []string{"👍", " 👍 ", "🎉"},
			tail:     []string{"🎉"},
			expected: []string{"👍"},
		},
		{
			name:     "tail match normalized",
			lines:    []string{"Build   PASSED!", "tests: 42"},
			tail:     []string{"build passed"},
			expected: []string{"tests: 42"},
		},
		{
			name:     "batch repeats",
			lines:    []string{"ping", "PING", "pong"},
			expected: []string{"ping", "pong"},
		},
		{
			name:       "near duplicate of recent",
			lines:      []string{"alice: the release is scheduled for friday", "bob: ok"},
			recent:     []string{"[10:02] alice: the release is scheduled for friday"},
			similarity: 0.8,
			expected:   []string{"bob: ok"},
		},
		{
			name:       "near duplicate check disabled",
			lines:      []string{"alice: the release is scheduled for friday"},
			recent:     []string{"[10:02] alice: the release is scheduled for friday"},
			similarity: 0,
			expected:   []string{"alice: the release is scheduled for friday"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Filter(tt.lines, tt.tail, tt.recent, tt.similarity))
		})
	}
}
