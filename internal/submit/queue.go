package submit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tagtime/internal/ping"
	"github.com/roach88/tagtime/internal/route"
	"github.com/roach88/tagtime/internal/store"
)

// Mode selects which entries a graph is offered.
type Mode int

const (
	// ModeIncremental offers only entries after the graph's watermark.
	ModeIncremental Mode = iota
	// ModeFull offers every routed entry, every time.
	ModeFull
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "incremental"
}

// ParseMode parses "full" or "incremental" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full":
		return ModeFull, nil
	case "incremental", "":
		return ModeIncremental, nil
	default:
		return ModeIncremental, fmt.Errorf("unknown submission mode %q", s)
	}
}

// Batch is one offer of entries to one graph.
type Batch struct {
	ID      string        `json:"id"`
	Graph   string        `json:"graph"`
	Mode    Mode          `json:"-"`
	Records []ping.Record `json:"records"`
}

// Entries returns the batch's entries in ledger order.
func (b Batch) Entries() []ping.Entry {
	out := make([]ping.Entry, len(b.Records))
	for i, r := range b.Records {
		out[i] = r.Entry
	}
	return out
}

// Last returns the position of the final record. Zero for an empty batch.
func (b Batch) Last() ping.Position {
	if len(b.Records) == 0 {
		return ping.Position{}
	}
	return b.Records[len(b.Records)-1].Position()
}

// Submitter delivers a batch to its graph. A nil error means the
// destination confirmed every entry.
type Submitter interface {
	Submit(ctx context.Context, b Batch) error
}

// EntrySource yields the committed ledger in order.
type EntrySource interface {
	Entries(ctx context.Context) ([]ping.Record, error)
}

// WatermarkStore persists per-graph watermarks.
type WatermarkStore interface {
	Watermark(ctx context.Context, graph string) (ping.Position, error)
	SetWatermark(ctx context.Context, graph string, p ping.Position) error
}

// AuditLog records every attempted batch.
type AuditLog interface {
	RecordSubmission(ctx context.Context, rec store.SubmissionRecord) error
}

// BatchResult reports one graph's outcome for a flush.
type BatchResult struct {
	BatchID string `json:"batch_id"`
	Graph   string `json:"graph"`
	Mode    string `json:"mode"`
	Count   int    `json:"count"`
	// Sent is true once the submitter confirmed the batch.
	Sent bool `json:"sent"`
	// Err is the submitter or watermark failure, if any.
	Err error `json:"-"`
	// Error mirrors Err for JSON output.
	Error string `json:"error,omitempty"`
}

// OK reports whether the batch was sent and its watermark recorded.
func (r BatchResult) OK() bool {
	return r.Sent && r.Err == nil
}

// Option configures a Queue.
type Option func(*Queue)

// WithModes sets per-graph modes. Graphs not listed use the default mode.
func WithModes(modes map[string]Mode) Option {
	return func(q *Queue) {
		for g, m := range modes {
			q.modes[g] = m
		}
	}
}

// WithDefaultMode sets the mode for graphs without an explicit one.
func WithDefaultMode(m Mode) Option {
	return func(q *Queue) { q.defaultMode = m }
}

// WithAuditLog records every attempt.
func WithAuditLog(a AuditLog) Option {
	return func(q *Queue) { q.audit = a }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithNow replaces time.Now for audit timestamps.
func WithNow(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithBatchIDs replaces the UUIDv7 batch id generator.
func WithBatchIDs(next func() string) Option {
	return func(q *Queue) { q.newID = next }
}

// WithConcurrency bounds how many graphs are submitted at once. Default 1.
func WithConcurrency(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

// Queue derives and sends per-graph batches.
//
// Thread-safety: Flush and Pending may be called concurrently with ledger
// appends; they only read committed entries. Concurrent Flush calls on
// one Queue are not supported.
type Queue struct {
	source      EntrySource
	rules       []route.Rule
	submitter   Submitter
	watermarks  WatermarkStore
	audit       AuditLog
	modes       map[string]Mode
	defaultMode Mode
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewQueue creates a submission queue over the given routing rules.
func NewQueue(source EntrySource, rules []route.Rule, submitter Submitter, watermarks WatermarkStore, opts ...Option) *Queue {
	q := &Queue{
		source:      source,
		rules:       rules,
		submitter:   submitter,
		watermarks:  watermarks,
		modes:       make(map[string]Mode),
		concurrency: 1,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Graphs lists the graphs this queue submits to, in declaration order.
func (q *Queue) Graphs() []string {
	return route.Graphs(q.rules)
}

// Mode returns the submission mode for graph.
func (q *Queue) Mode(graph string) Mode {
	if m, ok := q.modes[graph]; ok {
		return m
	}
	return q.defaultMode
}

// Pending returns the batch the next flush would offer graph, without
// sending it. The batch has no ID.
func (q *Queue) Pending(ctx context.Context, graph string) (Batch, error) {
	records, err := q.source.Entries(ctx)
	if err != nil {
		return Batch{}, fmt.Errorf("read ledger: %w", err)
	}
	return q.batchFor(ctx, graph, records)
}

func (q *Queue) batchFor(ctx context.Context, graph string, records []ping.Record) (Batch, error) {
	mode := q.Mode(graph)
	var mark ping.Position
	if mode == ModeIncremental {
		var err error
		mark, err = q.watermarks.Watermark(ctx, graph)
		if err != nil {
			return Batch{}, err
		}
	}

	b := Batch{Graph: graph, Mode: mode, Records: []ping.Record{}}
	for _, r := range records {
		if mode == ModeIncremental && !mark.IsZero() && !r.After(mark) {
			continue
		}
		if route.RoutesTo(r.Entry, graph, q.rules) {
			b.Records = append(b.Records, r)
		}
	}
	return b, nil
}

// Flush offers each graph its pending batch, in declaration order.
//
// Per-graph submitter failures are reported in the results, not as an
// error. The returned error covers failures to read the ledger or the
// watermarks. Graphs with nothing to send produce no result.
func (q *Queue) Flush(ctx context.Context) ([]BatchResult, error) {
	records, err := q.source.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	graphs := q.Graphs()
	results := make([]*BatchResult, len(graphs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.concurrency)
	for i, graph := range graphs {
		i, graph := i, graph
		g.Go(func() error {
			b, err := q.batchFor(gctx, graph, records)
			if err != nil {
				return fmt.Errorf("graph %s: %w", graph, err)
			}
			if len(b.Records) == 0 {
				return nil
			}
			b.ID = q.newID()
			res := q.send(gctx, b)
			results[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []BatchResult{}
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (q *Queue) send(ctx context.Context, b Batch) BatchResult {
	res := BatchResult{
		BatchID: b.ID,
		Graph:   b.Graph,
		Mode:    b.Mode.String(),
		Count:   len(b.Records),
	}

	if err := q.submitter.Submit(ctx, b); err != nil {
		res.Err = err
		q.logger.Warn("submission failed",
			"graph", b.Graph,
			"batch", b.ID,
			"count", res.Count,
			"error", err,
		)
	} else {
		res.Sent = true
		if err := q.watermarks.SetWatermark(ctx, b.Graph, b.Last()); err != nil {
			res.Err = fmt.Errorf("advance watermark: %w", err)
		}
		q.logger.Info("submitted",
			"graph", b.Graph,
			"batch", b.ID,
			"mode", res.Mode,
			"count", res.Count,
		)
	}
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	q.record(ctx, b, res)
	return res
}

func (q *Queue) record(ctx context.Context, b Batch, res BatchResult) {
	if q.audit == nil {
		return
	}
	rec := store.SubmissionRecord{
		ID:          b.ID,
		Graph:       b.Graph,
		Mode:        res.Mode,
		EntryCount:  res.Count,
		FirstTime:   b.Records[0].Entry.ScheduledTime,
		LastTime:    b.Last().ScheduledTime,
		OK:          res.OK(),
		Error:       res.Error,
		AttemptedAt: q.now().UTC(),
	}
	if err := q.audit.RecordSubmission(context.WithoutCancel(ctx), rec); err != nil {
		q.logger.Warn("audit submission failed", "batch", b.ID, "error", err)
	}
}
