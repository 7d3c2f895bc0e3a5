package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tagtime/internal/ping"
)

// Watermark returns the ledger position of the last entry confirmed sent to graph.
// Returns the zero Position when nothing has been sent yet.
func (s *Store) Watermark(ctx context.Context, graph string) (ping.Position, error) {
	var scheduled, seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT scheduled_time, seq FROM watermarks WHERE graph = ?
	`, graph).Scan(&scheduled, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return ping.Position{}, nil
	}
	if err != nil {
		return ping.Position{}, fmt.Errorf("read watermark %q: %w", graph, err)
	}
	return ping.Position{ScheduledTime: time.Unix(scheduled, 0).UTC(), Seq: seq}, nil
}

// SetWatermark records the last position confirmed sent to graph.
func (s *Store) SetWatermark(ctx context.Context, graph string, p ping.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watermarks (graph, scheduled_time, seq, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(graph) DO UPDATE SET
			scheduled_time = excluded.scheduled_time,
			seq = excluded.seq,
			updated_at = excluded.updated_at
	`, graph, p.ScheduledTime.Unix(), p.Seq, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write watermark %q: %w", graph, err)
	}
	return nil
}

// ResetWatermark forgets what was sent to graph, so the next incremental
// submission offers every routed entry again.
func (s *Store) ResetWatermark(ctx context.Context, graph string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watermarks WHERE graph = ?`, graph); err != nil {
		return fmt.Errorf("reset watermark %q: %w", graph, err)
	}
	return nil
}
