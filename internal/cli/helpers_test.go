package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagtime/internal/ledger"
	"github.com/roach88/tagtime/internal/ping"
	"github.com/roach88/tagtime/internal/schedule"
	"github.com/roach88/tagtime/internal/store"
	"github.com/roach88/tagtime/internal/testutil"
)

// testEnv is a config file and data directory for one test user.
type testEnv struct {
	dir    string
	config string
}

// newTestEnv writes a YAML config for user alice with the given graph rules.
func newTestEnv(t *testing.T, graphs ...string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	fmt.Fprintf(&b, "user: alice\n")
	fmt.Fprintf(&b, "data_dir: %q\n", filepath.Join(dir, "data"))
	if len(graphs) == 0 {
		b.WriteString("graphs: []\n")
	} else {
		b.WriteString("graphs:\n")
	}
	for _, g := range graphs {
		fmt.Fprintf(&b, "  - %q\n", g)
	}

	path := filepath.Join(dir, "tagtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return &testEnv{dir: dir, config: path}
}

func (e *testEnv) dataDir() string {
	return filepath.Join(e.dir, "data")
}

func (e *testEnv) storePath() string {
	return filepath.Join(e.dataDir(), "alice.db")
}

func (e *testEnv) ledgerPath() string {
	return filepath.Join(e.dataDir(), "alice.log")
}

func (e *testEnv) outboxDir() string {
	return filepath.Join(e.dataDir(), "outbox")
}

// root returns options pointing at the env's config.
func (e *testEnv) root(format string) *RootOptions {
	return &RootOptions{Format: format, ConfigPath: e.config}
}

// execute runs the root command with args after --config.
func (e *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

// executeJSON runs the command with --format json and decodes the envelope data.
func (e *testEnv) executeJSON(t *testing.T, data any, args ...string) (CLIResponse, error) {
	t.Helper()
	out, err := e.execute(t, append([]string{"--format", "json"}, args...)...)

	resp := decodeData(t, out, data)
	return resp, err
}

// decodeData parses a JSON envelope and decodes its data into data, if non-nil.
func decodeData(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

// saveCursor writes a cursor straight to the env's store.
func (e *testEnv) saveCursor(t *testing.T, c schedule.Cursor) {
	t.Helper()
	require.NoError(t, os.MkdirAll(e.dataDir(), 0o755))
	st, err := store.Open(e.storePath())
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.SaveCursor(context.Background(), c))
}

// loadCursor reads the cursor from the env's store.
func (e *testEnv) loadCursor(t *testing.T) (schedule.Cursor, bool) {
	t.Helper()
	st, err := store.Open(e.storePath())
	require.NoError(t, err)
	defer st.Close()
	c, found, err := st.LoadCursor(context.Background())
	require.NoError(t, err)
	return c, found
}

// appendEntries writes entries to the env's ledger.
func (e *testEnv) appendEntries(t *testing.T, entries ...ping.Entry) {
	t.Helper()
	led, err := ledger.Open(e.ledgerPath())
	require.NoError(t, err)
	for _, entry := range entries {
		require.NoError(t, led.Append(context.Background(), entry))
	}
}

// fixedCursor is a cursor over the fixed test seed at the default gap.
func fixedCursor(lastFire time.Time) schedule.Cursor {
	return schedule.Cursor{
		Seed:              testutil.FixedSeed(),
		AverageGapSeconds: int64((45 * time.Minute).Seconds()),
		LastFireTime:      lastFire,
	}
}

func answered(unix int64, tags string) ping.Entry {
	return ping.NewEntry(time.Unix(unix, 0), ping.OutcomeAnswered, ping.SplitTags(tags))
}

func retro(unix int64) ping.Entry {
	return ping.NewEntry(time.Unix(unix, 0), ping.OutcomeRetro, ping.NewTags(ping.TagAFK, ping.TagOff))
}

// newTestCommand returns a bare command wired to the given streams.
func newTestCommand(out, errOut *syncBuffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
