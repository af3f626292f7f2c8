package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
)

// Schema for the narrator journal. Each process start is one session.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    started_ns  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS text_entries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL REFERENCES sessions(id),
    seq         INTEGER NOT NULL,
    frame_id    TEXT,
    captured_ns INTEGER NOT NULL,
    lines       TEXT NOT NULL,
    UNIQUE (session_id, seq)
);

CREATE TABLE IF NOT EXISTS dialog_entries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL REFERENCES sessions(id),
    seq         INTEGER NOT NULL,
    spoken_ns   INTEGER NOT NULL,
    lines       TEXT NOT NULL,
    UNIQUE (session_id, seq)
);

CREATE TABLE IF NOT EXISTS summaries (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    TEXT NOT NULL REFERENCES sessions(id),
    created_ns    INTEGER NOT NULL,
    original_text TEXT NOT NULL,
    summary       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_text_session ON text_entries(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_dialog_session ON dialog_entries(session_id, seq);
`

type recordKind int

const (
	kindText recordKind = iota
	kindDialog
	kindSummary
)

// record is one pending row.
type record struct {
	kind     recordKind
	seq      int64
	frameID  string
	at       time.Time
	lines    string
	original string
}

// SQLiteJournal batches history rows into a session-scoped SQLite database.
type SQLiteJournal struct {
	db        *sql.DB
	sessionID uuid.UUID
	batcher   *Batcher[record]

	mu        sync.Mutex
	textSeq   int64
	dialogSeq int64
	closed    bool
}

// OpenSQLite opens or creates dir/narrator.db and starts a new session.
func OpenSQLite(dir string) (*SQLiteJournal, error) {
	return openSQLite(filepath.Join(dir, DatabaseName), DefaultBatcherMaxSize, DefaultBatcherFlushDelay)
}

func openSQLite(path string, maxBatch int, flushDelay time.Duration) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "create database directory")
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "open database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "apply schema")
	}

	j := &SQLiteJournal{db: db, sessionID: uuid.New()}
	if _, err := db.Exec(`INSERT INTO sessions (id, started_ns) VALUES (?, ?)`,
		j.sessionID.String(), time.Now().UnixNano()); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "insert session")
	}
	j.batcher = NewBatcher("sqlite", j.insert, maxBatch, flushDelay)
	return j, nil
}

// SessionID identifies this process's rows.
func (j *SQLiteJournal) SessionID() uuid.UUID { return j.sessionID }

// AppendText queues a text entry row.
func (j *SQLiteJournal) AppendText(entry transcript.TextEntry) error {
	j.mu.Lock()
	j.textSeq++
	seq := j.textSeq
	j.mu.Unlock()

	frameID := ""
	if entry.FrameID != uuid.Nil {
		frameID = entry.FrameID.String()
	}
	return j.add(record{kind: kindText, seq: seq, frameID: frameID, at: entry.Timestamp, lines: strings.Join(entry.Lines, "\n")})
}

// AppendDialog queues a dialog entry row.
func (j *SQLiteJournal) AppendDialog(entry transcript.DialogEntry) error {
	j.mu.Lock()
	j.dialogSeq++
	seq := j.dialogSeq
	j.mu.Unlock()

	return j.add(record{kind: kindDialog, seq: seq, at: entry.Timestamp, lines: strings.Join(entry.Lines, "\n")})
}

// RecordSummary queues a summary row.
func (j *SQLiteJournal) RecordSummary(captured string, dialog []string) error {
	return j.add(record{kind: kindSummary, at: time.Now(), original: captured, lines: strings.Join(dialog, "\n")})
}

func (j *SQLiteJournal) add(r record) error {
	if r.at.IsZero() {
		r.at = time.Now()
	}
	if !j.batcher.Add(r) {
		return apperrors.New(apperrors.CodeJournalFailed, "journal closed")
	}
	return nil
}

// insert writes one batch inside a single transaction.
func (j *SQLiteJournal) insert(ctx context.Context, records []record) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeJournalFailed, "begin transaction")
	}
	defer tx.Rollback()

	for _, r := range records {
		switch r.kind {
		case kindText:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO text_entries (session_id, seq, frame_id, captured_ns, lines) VALUES (?, ?, ?, ?, ?)`,
				j.sessionID.String(), r.seq, r.frameID, r.at.UnixNano(), r.lines)
		case kindDialog:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO dialog_entries (session_id, seq, spoken_ns, lines) VALUES (?, ?, ?, ?)`,
				j.sessionID.String(), r.seq, r.at.UnixNano(), r.lines)
		case kindSummary:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO summaries (session_id, created_ns, original_text, summary) VALUES (?, ?, ?, ?)`,
				j.sessionID.String(), r.at.UnixNano(), r.original, r.lines)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeJournalFailed, "insert journal row")
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeJournalFailed, "commit transaction")
	}
	return nil
}

// Flush writes queued rows and waits for them to land.
func (j *SQLiteJournal) Flush() {
	j.batcher.Sync()
}

// TextLines returns this session's extracted lines in append order.
func (j *SQLiteJournal) TextLines(ctx context.Context) ([]string, error) {
	return j.lines(ctx, `SELECT lines FROM text_entries WHERE session_id = ? ORDER BY seq`)
}

// DialogLines returns this session's spoken lines in append order.
func (j *SQLiteJournal) DialogLines(ctx context.Context) ([]string, error) {
	return j.lines(ctx, `SELECT lines FROM dialog_entries WHERE session_id = ? ORDER BY seq`)
}

// SummaryCount returns the number of summaries recorded this session.
func (j *SQLiteJournal) SummaryCount(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries WHERE session_id = ?`, j.sessionID.String()).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeJournalFailed, "count summaries")
	}
	return n, nil
}

func (j *SQLiteJournal) lines(ctx context.Context, query string) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, query, j.sessionID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "query journal")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var joined string
		if err := rows.Scan(&joined); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "scan journal row")
		}
		out = append(out, strings.Split(joined, "\n")...)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "iterate journal rows")
	}
	return out, nil
}

// Close flushes pending rows and closes the database.
func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	j.batcher.Stop()
	if err := j.db.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeJournalFailed, "close database")
	}
	return nil
}
