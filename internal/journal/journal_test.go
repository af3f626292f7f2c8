package journal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func clock() time.Time { return fixedNow }

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFileJournalAppends(t *testing.T) {
	dir := t.TempDir()
	j, err := openFile(dir, clock)
	require.NoError(t, err)

	require.NoError(t, j.AppendText(transcript.TextEntry{Lines: []string{"alice: hi", "bob: hey"}, Timestamp: fixedNow}))
	require.NoError(t, j.AppendDialog(transcript.DialogEntry{Lines: []string{"I'm saying hi."}}))
	require.NoError(t, j.Close())

	assert.Equal(t,
		"[2026-03-14 09:26:53] alice: hi\n[2026-03-14 09:26:53] bob: hey\n",
		readFile(t, filepath.Join(dir, TextFileName)))
	assert.Equal(t,
		"[2026-03-14 09:26:53] I'm saying hi.\n",
		readFile(t, filepath.Join(dir, DialogFileName)))
}

func TestFileJournalRotatesOnOpen(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, TextFileName)
	require.NoError(t, os.WriteFile(textPath, []byte("old session\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DialogFileName), nil, 0o644))

	j, err := openFile(dir, clock)
	require.NoError(t, err)
	defer j.Close()

	backup := filepath.Join(dir, "captured_text_backup_20260314_092653.txt")
	assert.Equal(t, "old session\n", readFile(t, backup))
	assert.Empty(t, readFile(t, textPath))

	_, err = os.Stat(filepath.Join(dir, "dialog_backup_20260314_092653.txt"))
	assert.True(t, os.IsNotExist(err), "empty files are not rotated")
}

func TestRotateMissingFile(t *testing.T) {
	backup, err := rotate(filepath.Join(t.TempDir(), "absent.txt"), fixedNow)
	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestFileJournalRecordSummary(t *testing.T) {
	dir := t.TempDir()
	j, err := openFile(dir, clock)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordSummary("vim main.go", []string{"I'm editing main.", "Almost done."}))

	path := filepath.Join(dir, SummariesDir, "summary_1773480413000.json")
	var got Summary
	require.NoError(t, json.Unmarshal([]byte(readFile(t, path)), &got))
	assert.Equal(t, Summary{
		Timestamp:    "20260314_092653",
		OriginalText: "vim main.go",
		Summary:      "I'm editing main.\nAlmost done.",
	}, got)
}

func TestFileJournalClosed(t *testing.T) {
	j, err := openFile(t.TempDir(), clock)
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	err = j.AppendText(transcript.TextEntry{Lines: []string{"x"}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeJournalFailed))
}

func TestSQLiteJournalRoundTrip(t *testing.T) {
	j, err := openSQLite(filepath.Join(t.TempDir(), DatabaseName), 2, time.Hour)
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	require.NoError(t, j.AppendText(transcript.TextEntry{Lines: []string{"one", "two"}, FrameID: uuid.New()}))
	require.NoError(t, j.AppendText(transcript.TextEntry{Lines: []string{"three"}}))
	require.NoError(t, j.AppendDialog(transcript.DialogEntry{Lines: []string{"I'm counting."}}))
	require.NoError(t, j.RecordSummary("one\ntwo\nthree", []string{"I'm counting."}))
	j.Flush()

	text, err := j.TextLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, text)

	dialog, err := j.DialogLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"I'm counting."}, dialog)

	n, err := j.SummaryCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteJournalSessionsAreSeparate(t *testing.T) {
	path := filepath.Join(t.TempDir(), DatabaseName)
	ctx := context.Background()

	first, err := openSQLite(path, 10, time.Hour)
	require.NoError(t, err)
	require.NoError(t, first.AppendDialog(transcript.DialogEntry{Lines: []string{"earlier"}}))
	require.NoError(t, first.Close())

	second, err := openSQLite(path, 10, time.Hour)
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, first.SessionID(), second.SessionID())

	lines, err := second.DialogLines(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines, "a new session starts with an empty history")
}

func TestSQLiteJournalClosedRejects(t *testing.T) {
	j, err := openSQLite(filepath.Join(t.TempDir(), DatabaseName), 10, time.Hour)
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	err = j.AppendDialog(transcript.DialogEntry{Lines: []string{"late"}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeJournalFailed))
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()

	j, err := Open("file", dir)
	require.NoError(t, err)
	assert.IsType(t, &FileJournal{}, j)
	require.NoError(t, j.Close())

	j, err = Open("sqlite", dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteJournal{}, j)
	require.NoError(t, j.Close())

	_, err = Open("postgres", dir)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfigInvalid))
}

func TestAttachMirrorsStores(t *testing.T) {
	dir := t.TempDir()
	j, err := openFile(dir, clock)
	require.NoError(t, err)

	text := transcript.NewTextStore(1)
	dialog := transcript.NewDialogLog(1)
	Attach(j, text, dialog)

	text.Append(transcript.TextEntry{Lines: []string{"build passed"}, Timestamp: fixedNow})
	dialog.Append(transcript.DialogEntry{Lines: []string{"The build passed."}, Timestamp: fixedNow})
	require.NoError(t, j.Close())

	assert.True(t, strings.HasSuffix(readFile(t, filepath.Join(dir, TextFileName)), "build passed\n"))
	assert.True(t, strings.HasSuffix(readFile(t, filepath.Join(dir, DialogFileName)), "The build passed.\n"))
}

func TestExportDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "session.docx")
	err := ExportDocx(path,
		[]transcript.TextEntry{{Lines: []string{"alice: lunch?"}, Timestamp: fixedNow}},
		[]transcript.DialogEntry{{Lines: []string{"Alice is asking about lunch."}, Timestamp: fixedNow}},
	)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestExportPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "narration_20260314_092653.docx"), ExportPath("out", fixedNow))
}
