package ledger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagtime/internal/ping"
)

// createTestLedger opens a ledger in a fresh temp directory.
func createTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "data", "alice.log"))
	require.NoError(t, err)
	return l
}

func TestOpen_CreatesFile(t *testing.T) {
	l := createTestLedger(t)

	_, err := os.Stat(l.Path())
	require.NoError(t, err)

	records, err := l.Entries(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestAppend_ThenEntries(t *testing.T) {
	ctx := context.Background()
	l := createTestLedger(t)

	for _, e := range sampleEntries() {
		require.NoError(t, l.Append(ctx, e))
	}

	records, err := l.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(sampleEntries()))
	for i, r := range records {
		assert.Equal(t, int64(i), r.Seq)
		assert.Equal(t, sampleEntries()[i], r.Entry)
	}
}

func TestAppend_RejectsOutOfOrder(t *testing.T) {
	ctx := context.Background()
	l := createTestLedger(t)

	require.NoError(t, l.Append(ctx, ping.NewEntry(at(1700002700), ping.OutcomeAnswered, ping.SplitTags("job"))))

	err := l.Append(ctx, ping.NewEntry(at(1700000000), ping.OutcomeAnswered, ping.SplitTags("job")))
	assert.ErrorIs(t, err, ErrOutOfOrder)

	// Same scheduled time is allowed: a retro entry and the answer to the same ping.
	require.NoError(t, l.Append(ctx, ping.NewEntry(at(1700002700), ping.OutcomeRetro, ping.SplitTags("afk off"))))
}

func TestAppend_RejectsSuppressed(t *testing.T) {
	l := createTestLedger(t)

	err := l.Append(context.Background(), ping.NewEntry(at(1700000000), ping.OutcomeSuppressed, nil))
	assert.ErrorIs(t, err, ErrSuppressed)

	records, err := l.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppend_CanceledContext(t *testing.T) {
	l := createTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Append(ctx, ping.NewEntry(at(1700000000), ping.OutcomeAnswered, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_ResumesTailPosition(t *testing.T) {
	ctx := context.Background()
	l := createTestLedger(t)
	require.NoError(t, l.Append(ctx, ping.NewEntry(at(1700002700), ping.OutcomeAnswered, ping.SplitTags("job"))))

	reopened, err := Open(l.Path())
	require.NoError(t, err)

	err = reopened.Append(ctx, ping.NewEntry(at(1700000000), ping.OutcomeAnswered, nil))
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestOpen_CorruptLedgerFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.log")
	require.NoError(t, os.WriteFile(path, []byte("1700000000 job\ngarbage line\n"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	// The file is left untouched.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1700000000 job\ngarbage line\n", string(data))
}

func TestEntries_PicksUpHandEdits(t *testing.T) {
	ctx := context.Background()
	l := createTestLedger(t)
	require.NoError(t, l.Append(ctx, ping.NewEntry(at(1700000000), ping.OutcomeAnswered, ping.SplitTags("job"))))

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("1700000100 reading\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, err := l.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ping.SplitTags("reading"), records[1].Entry.Tags)
}

func TestAppend_Concurrent(t *testing.T) {
	ctx := context.Background()
	l := createTestLedger(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, ping.NewEntry(at(1700000000), ping.OutcomeAnswered, ping.SplitTags("job"))))
		}()
	}
	wg.Wait()

	records, err := l.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}
