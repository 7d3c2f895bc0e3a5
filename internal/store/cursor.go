package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tagtime/internal/schedule"
)

// LoadCursor reads the scheduler cursor.
// Returns found=false when no cursor has been written yet (first run).
// A row that does not validate is reported as schedule.ErrCorruptCursor.
func (s *Store) LoadCursor(ctx context.Context) (schedule.Cursor, bool, error) {
	var (
		seed     []byte
		gap      int64
		lastFire sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT seed, average_gap_seconds, last_fire_time
		FROM cursor
		WHERE id = 1
	`).Scan(&seed, &gap, &lastFire)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Cursor{}, false, nil
	}
	if err != nil {
		return schedule.Cursor{}, false, fmt.Errorf("load cursor: %w: %v", schedule.ErrCorruptCursor, err)
	}

	parsed, err := schedule.SeedFromBytes(seed)
	if err != nil {
		return schedule.Cursor{}, false, fmt.Errorf("load cursor: %w: %v", schedule.ErrCorruptCursor, err)
	}

	c := schedule.Cursor{
		Seed:              parsed,
		AverageGapSeconds: gap,
	}
	if lastFire.Valid {
		c.LastFireTime = time.Unix(lastFire.Int64, 0).UTC()
	}
	if err := c.Validate(); err != nil {
		return schedule.Cursor{}, false, fmt.Errorf("load cursor: %w: %v", schedule.ErrCorruptCursor, err)
	}
	return c, true, nil
}

// SaveCursor durably writes the scheduler cursor, replacing any previous row.
func (s *Store) SaveCursor(ctx context.Context, c schedule.Cursor) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}

	var lastFire any
	if c.HasFired() {
		lastFire = c.LastFireTime.Unix()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursor (id, seed, average_gap_seconds, last_fire_time, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seed = excluded.seed,
			average_gap_seconds = excluded.average_gap_seconds,
			last_fire_time = excluded.last_fire_time,
			updated_at = excluded.updated_at
	`,
		c.Seed[:],
		c.AverageGapSeconds,
		lastFire,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
