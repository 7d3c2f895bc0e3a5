package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SubmissionRecord is one audited submission attempt.
type SubmissionRecord struct {
	ID          string    `json:"id"`
	Graph       string    `json:"graph"`
	Mode        string    `json:"mode"`
	EntryCount  int       `json:"entry_count"`
	FirstTime   time.Time `json:"first_time,omitempty"`
	LastTime    time.Time `json:"last_time,omitempty"`
	OK          bool      `json:"ok"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// RecordSubmission appends an attempt to the audit log.
func (s *Store) RecordSubmission(ctx context.Context, rec SubmissionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions
		(id, graph, mode, entry_count, first_time, last_time, ok, error, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Graph,
		rec.Mode,
		rec.EntryCount,
		nullableUnix(rec.FirstTime),
		nullableUnix(rec.LastTime),
		rec.OK,
		rec.Error,
		rec.AttemptedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// ListSubmissions returns the most recent attempts, newest first.
// An empty graph lists every graph. Returns an empty slice (not nil) if none exist.
func (s *Store) ListSubmissions(ctx context.Context, graph string, limit int) ([]SubmissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, graph, mode, entry_count, first_time, last_time, ok, error, attempted_at
		FROM submissions
		WHERE ? = '' OR graph = ?
		ORDER BY attempted_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, graph, graph, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	out := []SubmissionRecord{}
	for rows.Next() {
		var (
			rec         SubmissionRecord
			first, last sql.NullInt64
			attempted   int64
		)
		if err := rows.Scan(&rec.ID, &rec.Graph, &rec.Mode, &rec.EntryCount, &first, &last, &rec.OK, &rec.Error, &attempted); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if first.Valid {
			rec.FirstTime = time.Unix(first.Int64, 0).UTC()
		}
		if last.Valid {
			rec.LastTime = time.Unix(last.Int64, 0).UTC()
		}
		rec.AttemptedAt = time.Unix(attempted, 0).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
