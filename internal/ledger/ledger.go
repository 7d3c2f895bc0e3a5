package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/tagtime/internal/ping"
)

// ErrOutOfOrder is returned when an append would break scheduled-time order.
var ErrOutOfOrder = errors.New("entry is older than the last ledger entry")

// Ledger is an append-only ping log backed by a text file.
//
// Thread-safety: Append and Entries are safe for concurrent use. Appends are
// serialized; Entries re-reads the file so hand edits are picked up.
type Ledger struct {
	path string

	mu   sync.Mutex
	last time.Time
}

// Open opens (or creates) the ledger at path and loads its tail position.
// A ledger that fails to parse is returned as an error, never truncated.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	entries, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	l := &Ledger{path: path}
	if n := len(entries); n > 0 {
		l.last = entries[n-1].ScheduledTime
	}
	return l, nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Append durably writes one entry. It returns only after the line is fsynced;
// on error the entry must be treated as not committed.
func (l *Ledger) Append(ctx context.Context, e ping.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Validate(e); err != nil {
		return fmt.Errorf("append: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e.ScheduledTime.Before(l.last) {
		return fmt.Errorf("append %d: %w (last %d)", e.ScheduledTime.Unix(), ErrOutOfOrder, l.last.Unix())
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append: open: %w", err)
	}
	if _, err := f.WriteString(FormatLine(e) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("append: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("append: close: %w", err)
	}

	l.last = e.ScheduledTime
	return nil
}

// Entries re-reads the ledger and returns every entry with its position.
// Returns an empty slice (not nil) for an empty ledger.
func (l *Ledger) Entries(ctx context.Context) ([]ping.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	entries, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", l.path, err)
	}

	records := make([]ping.Record, len(entries))
	for i, e := range entries {
		records[i] = ping.Record{Seq: int64(i), Entry: e}
	}
	return records, nil
}
