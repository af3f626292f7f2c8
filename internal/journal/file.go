package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
)

// FileJournal appends timestamped lines to plain text files.
type FileJournal struct {
	dir    string
	mu     sync.Mutex
	text   *os.File
	dialog *os.File
	now    func() time.Time
}

// Summary is the on-disk record of one summarization round.
type Summary struct {
	Timestamp    string `json:"timestamp"`
	OriginalText string `json:"original_text"`
	Summary      string `json:"summary"`
}

// OpenFile rotates any previous session's logs and opens fresh ones in dir.
func OpenFile(dir string) (*FileJournal, error) {
	return openFile(dir, time.Now)
}

func openFile(dir string, now func() time.Time) (*FileJournal, error) {
	if err := os.MkdirAll(filepath.Join(dir, SummariesDir), 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "create output directory")
	}

	j := &FileJournal{dir: dir, now: now}
	var err error
	if j.text, err = openRotated(filepath.Join(dir, TextFileName), now()); err != nil {
		return nil, err
	}
	if j.dialog, err = openRotated(filepath.Join(dir, DialogFileName), now()); err != nil {
		j.text.Close()
		return nil, err
	}
	return j, nil
}

// openRotated moves a non-empty file at path aside and opens an empty one.
func openRotated(path string, at time.Time) (*os.File, error) {
	if _, err := rotate(path, at); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "open journal file").WithMetadata("path", path)
	}
	return f, nil
}

// rotate renames path to <name>_backup_<stamp><ext> if it holds data and
// returns the backup path, or "" when nothing was rotated.
func rotate(path string, at time.Time) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeJournalFailed, "stat journal file").WithMetadata("path", path)
	}

	ext := filepath.Ext(path)
	backup := fmt.Sprintf("%s_backup_%s%s", strings.TrimSuffix(path, ext), at.Format(backupStamp), ext)
	if err := os.Rename(path, backup); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeJournalFailed, "rotate journal file").WithMetadata("path", path)
	}
	return backup, nil
}

// AppendText writes each extracted line with the entry's timestamp.
func (j *FileJournal) AppendText(entry transcript.TextEntry) error {
	return j.write(&j.text, entry.Timestamp, entry.Lines)
}

// AppendDialog writes each spoken line with the entry's timestamp.
func (j *FileJournal) AppendDialog(entry transcript.DialogEntry) error {
	return j.write(&j.dialog, entry.Timestamp, entry.Lines)
}

func (j *FileJournal) write(target **os.File, at time.Time, lines []string) error {
	if at.IsZero() {
		at = j.now()
	}
	var b strings.Builder
	stamp := at.Format(lineStamp)
	for _, line := range lines {
		fmt.Fprintf(&b, "[%s] %s\n", stamp, line)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	f := *target
	if f == nil {
		return apperrors.New(apperrors.CodeJournalFailed, "journal closed")
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return apperrors.Wrap(err, apperrors.CodeJournalFailed, "write journal file").WithMetadata("path", f.Name())
	}
	return nil
}

// RecordSummary writes summaries/summary_<unix ms>.json.
func (j *FileJournal) RecordSummary(captured string, dialog []string) error {
	at := j.now()
	data, err := json.MarshalIndent(Summary{
		Timestamp:    at.Format(backupStamp),
		OriginalText: captured,
		Summary:      strings.Join(dialog, "\n"),
	}, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeJournalFailed, "encode summary")
	}

	path := filepath.Join(j.dir, SummariesDir, fmt.Sprintf("summary_%d.json", at.UnixMilli()))
	if err := os.WriteFile(path, data, summaryFileMode); err != nil {
		return apperrors.Wrap(err, apperrors.CodeJournalFailed, "write summary").WithMetadata("path", path)
	}
	return nil
}

// Close closes both log files.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var firstErr error
	for _, f := range []**os.File{&j.text, &j.dialog} {
		if *f == nil {
			continue
		}
		if err := (*f).Close(); err != nil && firstErr == nil {
			firstErr = apperrors.Wrap(err, apperrors.CodeJournalFailed, "close journal file")
		}
		*f = nil
	}
	return firstErr
}
