package store

import (
	"context"
	"fmt"

	"github.com/roach88/tagtime/internal/ping"
)

// TagCount is how often a tag has been answered.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// IncrementTagCounts adds one to the count of every tag in the set.
// The first spelling seen for a tag is kept for display.
func (s *Store) IncrementTagCounts(ctx context.Context, tags ping.Tags) error {
	if len(tags) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("increment tag counts: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, tag := range tags {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tag_counts (tag, display, count)
			VALUES (?, ?, 1)
			ON CONFLICT(tag) DO UPDATE SET count = count + 1
		`, ping.Fold(tag), tag)
		if err != nil {
			return fmt.Errorf("increment tag counts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("increment tag counts: commit: %w", err)
	}
	return nil
}

// TopTags returns the most used tags, most frequent first, ties by name.
// Returns an empty slice (not nil) if no tags have been counted.
func (s *Store) TopTags(ctx context.Context, limit int) ([]TagCount, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT display, count FROM tag_counts
		ORDER BY count DESC, tag COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tag counts: %w", err)
	}
	defer rows.Close()

	out := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan tag count: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag counts: %w", err)
	}
	return out, nil
}
