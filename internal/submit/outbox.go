package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/tagtime/internal/ping"
)

// Datapoint is one entry as offered to a graph.
type Datapoint struct {
	// ID is ping.EntryID, stable across resubmissions.
	ID        string    `json:"id"`
	Timestamp int64     `json:"timestamp"`
	Time      time.Time `json:"time"`
	// Value is the hours one ping stands for (the average gap).
	Value   float64      `json:"value"`
	Comment string       `json:"comment"`
	Outcome ping.Outcome `json:"outcome"`
}

// OutboxLine is one JSON line in a graph's outbox file.
type OutboxLine struct {
	BatchID     string      `json:"batch_id"`
	Destination string      `json:"destination,omitempty"`
	Graph       string      `json:"graph"`
	Mode        string      `json:"mode"`
	WrittenAt   time.Time   `json:"written_at"`
	Datapoints  []Datapoint `json:"datapoints"`
}

// OutboxSubmitter is a Submitter that appends each batch as one JSON line
// to <dir>/<graph>.jsonl, for an external uploader to deliver.
type OutboxSubmitter struct {
	dir          string
	baseURL      string
	user         string
	valuePerPing float64
	now          func() time.Time

	mu sync.Mutex
}

// NewOutboxSubmitter creates an outbox writer. averageGap sets the value
// each datapoint carries; baseURL and user name the destination.
func NewOutboxSubmitter(dir, baseURL, user string, averageGap time.Duration) *OutboxSubmitter {
	return &OutboxSubmitter{
		dir:          dir,
		baseURL:      baseURL,
		user:         user,
		valuePerPing: averageGap.Hours(),
		now:          time.Now,
	}
}

// Path returns the outbox file for graph.
func (o *OutboxSubmitter) Path(graph string) string {
	return filepath.Join(o.dir, graph+".jsonl")
}

// Submit appends the batch and fsyncs the outbox file.
func (o *OutboxSubmitter) Submit(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line := OutboxLine{
		BatchID:    b.ID,
		Graph:      b.Graph,
		Mode:       b.Mode.String(),
		WrittenAt:  o.now().UTC(),
		Datapoints: make([]Datapoint, 0, len(b.Records)),
	}
	if o.baseURL != "" {
		line.Destination = fmt.Sprintf("%s/%s/%s", o.baseURL, o.user, b.Graph)
	}
	for _, r := range b.Records {
		e := r.Entry
		line.Datapoints = append(line.Datapoints, Datapoint{
			ID:        ping.EntryID(e),
			Timestamp: e.ScheduledTime.Unix(),
			Time:      e.ScheduledTime,
			Value:     o.valuePerPing,
			Comment:   e.Tags.String(),
			Outcome:   e.Outcome,
		})
	}

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	data = append(data, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return fmt.Errorf("create outbox dir: %w", err)
	}
	f, err := os.OpenFile(o.Path(b.Graph), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write outbox: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync outbox: %w", err)
	}
	return f.Close()
}
