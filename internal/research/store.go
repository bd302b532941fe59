package research

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record is one persisted research invocation.
type Record struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // "topic" or "report"
	Topic      string    `json:"topic,omitempty"`
	Strategy   string    `json:"strategy"`
	Status     Status    `json:"status"`
	OutputLen  int       `json:"output_len"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Record kinds.
const (
	KindTopic  = "topic"
	KindReport = "report"
)

// Store is the SQLite audit log of research invocations.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the research log at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create research log dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open research log: %w", err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates a store on an existing connection and creates its
// table if it does not already exist.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("research store migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS research_invocations (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			topic       TEXT,
			strategy    TEXT NOT NULL,
			status      TEXT NOT NULL,
			output_len  INTEGER NOT NULL,
			started_at  TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_research_started
			ON research_invocations(started_at DESC);
	`)
	return err
}

// Record inserts one invocation.
func (s *Store) Record(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO research_invocations (
			id, kind, topic, strategy, status, output_len, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.Topic, rec.Strategy, string(rec.Status),
		rec.OutputLen, rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("record research %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit invocations, newest first. A limit of zero
// or less returns all rows.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, kind, topic, strategy, status, output_len, started_at, duration_ms
		FROM research_invocations ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query research log: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			topic   sql.NullString
			status  string
			started string
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &topic, &rec.Strategy, &status, &rec.OutputLen, &started, &rec.DurationMs); err != nil {
			return nil, fmt.Errorf("scan research row: %w", err)
		}
		rec.Topic = topic.String
		rec.Status = Status(status)
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
