package ticket

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"agentdir/internal/agent"
	"agentdir/internal/config"
)

// SQLiteSink persists activity records to an append-only sqlite table.
// Records are deduplicated on (timestamp, kind, agent_id, source_path) so
// at-least-once delivery from the reporter stays idempotent.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

const activitySchema = `
CREATE TABLE IF NOT EXISTS activities (
	id              TEXT NOT NULL,
	ts_ns           INTEGER NOT NULL,
	kind            TEXT NOT NULL,
	agent_id        TEXT NOT NULL DEFAULT '',
	source_path     TEXT NOT NULL DEFAULT '',
	view_generation INTEGER NOT NULL DEFAULT 0,
	details         TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (ts_ns, kind, agent_id, source_path)
);
`

// OpenSQLiteSink opens (and if needed creates) the activity database at path.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	// _pragma parameters in the DSN configure every pooled connection
	// identically; per-connection Exec would miss pool growth.
	db, err := sql.Open("sqlite", buildDSN(expanded))
	if err != nil {
		return nil, fmt.Errorf("open activity database: %w", err)
	}

	// SQLite allows a single writer; a small pool avoids SQLITE_BUSY.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(activitySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create activity schema: %w", err)
	}

	return &SQLiteSink{db: db, path: expanded}, nil
}

// buildDSN constructs a modernc.org/sqlite DSN with pragma parameters.
func buildDSN(path string) string {
	v := url.Values{}
	v.Set("_pragma", "journal_mode=WAL")
	v.Add("_pragma", "busy_timeout=30000")
	v.Add("_pragma", "synchronous=NORMAL")
	return path + "?" + v.Encode()
}

// PostActivity implements Sink with an idempotent insert.
func (s *SQLiteSink) PostActivity(ctx context.Context, rec *agent.ActivityRecord) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO activities (id, ts_ns, kind, agent_id, source_path, view_generation, details)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (ts_ns, kind, agent_id, source_path) DO NOTHING
`, rec.ID, rec.Timestamp.UnixNano(), string(rec.Kind), rec.AgentID, rec.SourcePath, rec.ViewGeneration, string(details))
	return err
}

// Count returns the number of stored records, optionally filtered by kind.
func (s *SQLiteSink) Count(ctx context.Context, kind agent.EventKind) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE kind = ?`, string(kind)).Scan(&n)
	}
	return n, err
}

// Recent returns up to limit most recent records.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]*agent.ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts_ns, kind, agent_id, source_path, view_generation, details
FROM activities
ORDER BY ts_ns DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*agent.ActivityRecord
	for rows.Next() {
		var (
			rec     agent.ActivityRecord
			tsNS    int64
			kind    string
			details string
		)
		if err := rows.Scan(&rec.ID, &tsNS, &kind, &rec.AgentID, &rec.SourcePath, &rec.ViewGeneration, &details); err != nil {
			return nil, err
		}
		rec.Timestamp = timeFromNS(tsNS)
		rec.Kind = agent.EventKind(kind)
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &rec.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// timeFromNS converts a unix-nanosecond column back to a time.
func timeFromNS(ns int64) time.Time {
	return time.Unix(0, ns)
}

// Path returns the database file path.
func (s *SQLiteSink) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
