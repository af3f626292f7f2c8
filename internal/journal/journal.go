package journal

import (
	"github.com/GriffinCanCode/screen-narrator/internal/config"
	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
)

// Journal persists appended history entries and completed summaries.
type Journal interface {
	AppendText(entry transcript.TextEntry) error
	AppendDialog(entry transcript.DialogEntry) error
	RecordSummary(captured string, dialog []string) error
	Close() error
}

// Open returns the journal for backend rooted at dir.
func Open(backend, dir string) (Journal, error) {
	switch backend {
	case "", config.JournalFile:
		j, err := OpenFile(dir)
		if err != nil {
			return nil, err
		}
		return j, nil
	case config.JournalSQLite:
		j, err := OpenSQLite(dir)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, apperrors.Newf(apperrors.CodeConfigInvalid, "unknown journal backend %q", backend)
	}
}

// Attach mirrors both stores into j.
func Attach(j Journal, text *transcript.TextStore, dialog *transcript.DialogLog) {
	text.SetSink(j.AppendText)
	dialog.SetSink(j.AppendDialog)
}
