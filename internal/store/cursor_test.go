package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagtime/internal/schedule"
)

func TestLoadCursor_FirstRun(t *testing.T) {
	s := createTestStore(t)

	_, found, err := s.LoadCursor(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCursor_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := createTestCursor(time.Unix(1700000000, 0).UTC())
	require.NoError(t, s.SaveCursor(ctx, want))

	got, found, err := s.LoadCursor(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want.Seed, got.Seed)
	assert.Equal(t, want.AverageGapSeconds, got.AverageGapSeconds)
	assert.True(t, want.LastFireTime.Equal(got.LastFireTime))
}

func TestCursor_NotYetFired(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCursor(ctx, createTestCursor(time.Time{})))

	got, found, err := s.LoadCursor(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, got.HasFired())
}

func TestCursor_Overwrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCursor(ctx, createTestCursor(time.Unix(1700000000, 0))))
	require.NoError(t, s.SaveCursor(ctx, createTestCursor(time.Unix(1700003600, 0))))

	got, _, err := s.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1700003600), got.LastFireTime.Unix())

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM cursor").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestCursor_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SaveCursor(ctx, createTestCursor(time.Unix(1700000000, 0))))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, found, err := s2.LoadCursor(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1700000000), got.LastFireTime.Unix())
}

func TestLoadCursor_CorruptSeed(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO cursor (id, seed, average_gap_seconds, last_fire_time, updated_at)
		VALUES (1, x'0102', 2700, 1700000000, 0)
	`)
	require.NoError(t, err)

	_, _, err = s.LoadCursor(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, schedule.ErrCorruptCursor)
}

func TestLoadCursor_CorruptGap(t *testing.T) {
	s := createTestStore(t)
	c := createTestCursor(time.Time{})

	_, err := s.db.Exec(`
		INSERT INTO cursor (id, seed, average_gap_seconds, last_fire_time, updated_at)
		VALUES (1, ?, 0, NULL, 0)
	`, c.Seed[:])
	require.NoError(t, err)

	_, _, err = s.LoadCursor(context.Background())
	assert.ErrorIs(t, err, schedule.ErrCorruptCursor)
}

func TestSaveCursor_RejectsInvalid(t *testing.T) {
	s := createTestStore(t)

	err := s.SaveCursor(context.Background(), schedule.Cursor{AverageGapSeconds: 60})
	assert.Error(t, err)

	_, found, err := s.LoadCursor(context.Background())
	require.NoError(t, err)
	assert.False(t, found, "invalid cursor must not be persisted")
}
