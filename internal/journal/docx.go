package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
)

const (
	fontName    = "Calibri"
	fontSize    = 11
	headingSize = 14
	titleSize   = 16
)

// ExportDocx writes the session's dialog followed by the captured text to a
// Word document at path.
func ExportDocx(path string, text []transcript.TextEntry, dialog []transcript.DialogEntry) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeJournalFailed, "create document")
	}

	addRun(doc.AddParagraph(""), "Screen Narration", true, titleSize)
	addRun(doc.AddParagraph(""), time.Now().Format("Monday, January 2 2006 15:04"), false, fontSize)
	doc.AddParagraph("")

	addRun(doc.AddParagraph(""), "Dialog", true, headingSize)
	if len(dialog) == 0 {
		addRun(doc.AddParagraph(""), "Nothing was spoken.", false, fontSize)
	}
	for _, e := range dialog {
		p := doc.AddParagraph("")
		addRun(p, e.Timestamp.Format("15:04:05")+"  ", true, fontSize)
		addRun(p, e.Text(), false, fontSize)
	}
	doc.AddParagraph("")

	addRun(doc.AddParagraph(""), "Captured Text", true, headingSize)
	if len(text) == 0 {
		addRun(doc.AddParagraph(""), "No text was captured.", false, fontSize)
	}
	for _, e := range text {
		addRun(doc.AddParagraph(""), e.Timestamp.Format("15:04:05"), true, fontSize)
		for _, line := range e.Lines {
			addRun(doc.AddParagraph(""), line, false, fontSize)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeJournalFailed, "create export directory")
	}
	if err := doc.SaveTo(path); err != nil {
		return apperrors.Wrap(err, apperrors.CodeJournalFailed, "save document").WithMetadata("path", path)
	}
	return nil
}

// ExportPath returns a timestamped docx path under dir.
func ExportPath(dir string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("narration_%s.docx", at.Format(backupStamp)))
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
