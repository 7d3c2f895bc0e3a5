package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tagtime/internal/schedule"
	"github.com/roach88/tagtime/internal/testutil"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCursor builds a cursor on the fixed test seed with a 45 minute gap.
func createTestCursor(lastFire time.Time) schedule.Cursor {
	return schedule.Cursor{
		Seed:              testutil.FixedSeed(),
		AverageGapSeconds: 2700,
		LastFireTime:      lastFire,
	}
}
