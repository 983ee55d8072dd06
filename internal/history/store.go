package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one terminal job outcome kept for auditing. The job registry
// itself stays ephemeral; this log only answers "what happened to job X"
// after the fact.
type Record struct {
	JobID      string    `json:"job_id"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS job_history (
	job_id      TEXT NOT NULL,
	source_lang TEXT NOT NULL,
	target_lang TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_history_finished ON job_history (finished_at DESC);
`

type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one outcome row.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_history (job_id, source_lang, target_lang, outcome, detail, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.SourceLang, rec.TargetLang, rec.Outcome, rec.Detail,
		rec.CreatedAt.UTC(), rec.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert job history: %w", err)
	}
	return nil
}

// Recent returns the latest outcomes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, source_lang, target_lang, outcome, detail, created_at, finished_at
		 FROM job_history ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	defer rows.Close()

	ret := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.JobID, &rec.SourceLang, &rec.TargetLang,
			&rec.Outcome, &rec.Detail, &rec.CreatedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan job history row: %w", err)
		}
		ret = append(ret, rec)
	}
	return ret, rows.Err()
}
