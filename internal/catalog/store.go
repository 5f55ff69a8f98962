package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
)

const schema = `
	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		dir TEXT NOT NULL,
		startedAt REAL NOT NULL,
		durationMs INTEGER NOT NULL,
		screenshots INTEGER NOT NULL,
		hasTranscript INTEGER NOT NULL,
		reportPath TEXT NOT NULL,
		exportedAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS meetings_startedAt ON meetings(startedAt);
`

// Meeting is one exported meeting as listed by the catalog.
type Meeting struct {
	ID            string
	Dir           string
	StartedAt     time.Time
	Duration      time.Duration
	Screenshots   int
	HasTranscript bool
	ReportPath    string
	ExportedAt    time.Time
}

// Store indexes exported meetings in SQLite.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

// Open opens or creates the catalog database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Store{db: db, now: time.Now, logger: logging.L("catalog")}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts or replaces a meeting.
func (s *Store) Record(ctx context.Context, m Meeting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, dir, startedAt, durationMs, screenshots, hasTranscript, reportPath, exportedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			dir = excluded.dir,
			startedAt = excluded.startedAt,
			durationMs = excluded.durationMs,
			screenshots = excluded.screenshots,
			hasTranscript = excluded.hasTranscript,
			reportPath = excluded.reportPath,
			exportedAt = excluded.exportedAt
	`, m.ID, m.Dir, unixFromTime(m.StartedAt), m.Duration.Milliseconds(), m.Screenshots,
		boolToInt(m.HasTranscript), m.ReportPath, unixFromTime(m.ExportedAt))
	if err != nil {
		return fmt.Errorf("record meeting: %w", err)
	}
	return nil
}

// List returns meetings newest first. A limit of zero or less returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Meeting, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dir, startedAt, durationMs, screenshots, hasTranscript, reportPath, exportedAt
		FROM meetings
		ORDER BY startedAt DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []Meeting
	for rows.Next() {
		var m Meeting
		var startedAt, exportedAt float64
		var durationMs int64
		var hasTranscript int
		if err := rows.Scan(&m.ID, &m.Dir, &startedAt, &durationMs, &m.Screenshots,
			&hasTranscript, &m.ReportPath, &exportedAt); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		m.StartedAt = timeFromUnix(startedAt)
		m.ExportedAt = timeFromUnix(exportedAt)
		m.Duration = time.Duration(durationMs) * time.Millisecond
		m.HasTranscript = hasTranscript != 0
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// Name implements ports.ExportHook.
func (s *Store) Name() string {
	return "catalog"
}

// AfterExport records the exported session.
func (s *Store) AfterExport(ctx context.Context, session domain.Session, report domain.Report) error {
	m := Meeting{
		ID:            session.ID,
		Dir:           session.Dir,
		StartedAt:     session.StartedAt,
		Duration:      session.Duration(),
		Screenshots:   len(session.Screenshots),
		HasTranscript: report.HasTranscript,
		ReportPath:    report.Path,
		ExportedAt:    s.now(),
	}
	if err := s.Record(ctx, m); err != nil {
		return err
	}
	s.logger.Debug("meeting cataloged", zap.String(logging.KeySessionID, m.ID))
	return nil
}

func unixFromTime(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
