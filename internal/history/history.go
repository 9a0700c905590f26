// Package history persists agent status transitions in a local SQLite
// database so the dashboard can summarize what happened while nobody was
// watching.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/logging"
)

var historyLog = logging.ForComponent(logging.CompHistory)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// Transition is one change of an agent's status kind.
type Transition struct {
	At      time.Time
	AgentID string
	Target  string
	Tool    agents.Tool
	From    agents.StatusKind
	To      agents.StatusKind
	Detail  string
}

// Record is a stored transition.
type Record struct {
	Transition
	ID    int64
	RunID string
}

// Count is the number of transitions into one status for one tool.
type Count struct {
	Tool   agents.Tool
	Status agents.StatusKind
	N      int
}

// Store wraps the history database. Safe for concurrent use; several
// processes may share a file through WAL mode and the busy timeout.
type Store struct {
	db    *sql.DB
	runID string
}

// Open creates or opens a SQLite database at dbPath with WAL mode and busy timeout.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}

	// WAL lets a second agent-watch read while this one writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: busy timeout: %w", err)
	}

	s := &Store{db: db, runID: uuid.NewString()}
	historyLog.Debug("history_opened", slog.String("path", dbPath), slog.String("run_id", s.runID))
	return s, nil
}

// Close checkpoints WAL and closes the database.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// RunID identifies the current process in stored records.
func (s *Store) RunID() string { return s.runID }

// Migrate creates tables if they don't exist.
func (s *Store) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("history: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("history: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS transitions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			at          INTEGER NOT NULL,
			agent_id    TEXT NOT NULL,
			target      TEXT NOT NULL,
			tool        TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status   TEXT NOT NULL,
			detail      TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("history: create transitions: %w", err)
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at)`); err != nil {
		return fmt.Errorf("history: create index: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("history: set schema version: %w", err)
	}

	return tx.Commit()
}

// RecordTransition appends one transition tagged with the run id.
func (s *Store) RecordTransition(ctx context.Context, t Transition) error {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (run_id, at, agent_id, target, tool, from_status, to_status, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.runID, t.At.UnixMilli(), t.AgentID, t.Target, string(t.Tool),
		t.From.String(), t.To.String(), t.Detail,
	)
	if err != nil {
		return fmt.Errorf("history: record transition: %w", err)
	}
	return nil
}

// Recent returns up to limit transitions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, at, agent_id, target, tool, from_status, to_status, detail
		FROM transitions ORDER BY at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var r Record
		var atMillis int64
		var tool, from, to string
		if err := rows.Scan(&r.ID, &r.RunID, &atMillis, &r.AgentID, &r.Target, &tool, &from, &to, &r.Detail); err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(atMillis)
		r.Tool = agents.Tool(tool)
		r.From = parseKind(from)
		r.To = parseKind(to)
		result = append(result, r)
	}
	return result, rows.Err()
}

// CountsSince groups transitions at or after since by tool and target status.
func (s *Store) CountsSince(ctx context.Context, since time.Time) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool, to_status, COUNT(*)
		FROM transitions WHERE at >= ?
		GROUP BY tool, to_status
		ORDER BY tool, to_status
	`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("history: query counts: %w", err)
	}
	defer rows.Close()

	var result []Count
	for rows.Next() {
		var c Count
		var tool, status string
		if err := rows.Scan(&tool, &status, &c.N); err != nil {
			return nil, err
		}
		c.Tool = agents.Tool(tool)
		c.Status = parseKind(status)
		result = append(result, c)
	}
	return result, rows.Err()
}

// Prune deletes transitions older than before and reports how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transitions WHERE at < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		historyLog.Info("history_pruned", slog.Int64("rows", n))
	}
	return n, nil
}

var kindsByName = map[string]agents.StatusKind{
	agents.StatusIdle.String():             agents.StatusIdle,
	agents.StatusProcessing.String():       agents.StatusProcessing,
	agents.StatusAwaitingApproval.String(): agents.StatusAwaitingApproval,
	agents.StatusError.String():            agents.StatusError,
}

func parseKind(s string) agents.StatusKind {
	if k, ok := kindsByName[s]; ok {
		return k
	}
	return agents.StatusUnknown
}
