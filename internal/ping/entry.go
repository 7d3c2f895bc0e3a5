package ping

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the terminal result of a scheduled ping.
type Outcome int

const (
	// OutcomeAnswered means the user supplied tags.
	OutcomeAnswered Outcome = iota + 1
	// OutcomeCanceled means the prompt was dismissed inside the timeout window.
	OutcomeCanceled
	// OutcomeTimedOut means the prompt was left open past the timeout window.
	OutcomeTimedOut
	// OutcomeRetro marks an entry inserted after the fact for a missed window.
	OutcomeRetro
	// OutcomeSuppressed reports the bootstrap ping of a first run.
	// It is never appended to the ledger.
	OutcomeSuppressed
)

// Fixed tags written for non-answered outcomes.
const (
	TagCanceled = "canceled"
	TagTimedOut = "timed_out"
	TagAFK      = "afk"
	TagOff      = "off"

	// TagRetro is never written to the ledger. Routing sees it on every
	// Canceled, TimedOut and Retro entry, so "afk retro" rules catch them.
	TagRetro = "retro"
)

var outcomeNames = map[Outcome]string{
	OutcomeAnswered:   "answered",
	OutcomeCanceled:   "canceled",
	OutcomeTimedOut:   "timed_out",
	OutcomeRetro:      "retro",
	OutcomeSuppressed: "suppressed",
}

// String returns the lower-case keyword used in the ledger annotation.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Loggable reports whether entries with this outcome belong in the ledger.
func (o Outcome) Loggable() bool {
	switch o {
	case OutcomeAnswered, OutcomeCanceled, OutcomeTimedOut, OutcomeRetro:
		return true
	default:
		return false
	}
}

// ParseOutcome parses a ledger keyword (case-insensitive).
func ParseOutcome(s string) (Outcome, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for o, name := range outcomeNames {
		if name == want && o.Loggable() {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// MarshalText implements encoding.TextMarshaler so JSON output uses the keyword.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	parsed, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Entry is one ping outcome as recorded in the ledger.
type Entry struct {
	ScheduledTime time.Time `json:"scheduled_time"`
	Tags          Tags      `json:"tags"`
	Outcome       Outcome   `json:"outcome"`
}

// NewEntry builds an entry with the scheduled time truncated to whole seconds in UTC.
func NewEntry(scheduled time.Time, outcome Outcome, tags Tags) Entry {
	return Entry{
		ScheduledTime: Normalize(scheduled),
		Tags:          tags,
		Outcome:       outcome,
	}
}

// RoutingTags returns the tags rules match against: the entry's own tags,
// plus TagRetro when the outcome is not an answer.
func (e Entry) RoutingTags() Tags {
	switch e.Outcome {
	case OutcomeCanceled, OutcomeTimedOut, OutcomeRetro:
		tags := make([]string, 0, len(e.Tags)+1)
		tags = append(tags, e.Tags...)
		return NewTags(append(tags, TagRetro)...)
	default:
		return e.Tags
	}
}

// Equal reports whether two entries are identical, including tag spelling and order.
func (e Entry) Equal(other Entry) bool {
	if !e.ScheduledTime.Equal(other.ScheduledTime) || e.Outcome != other.Outcome {
		return false
	}
	if len(e.Tags) != len(other.Tags) {
		return false
	}
	for i := range e.Tags {
		if e.Tags[i] != other.Tags[i] {
			return false
		}
	}
	return true
}

// Record pairs an entry with its zero-based position in the ledger.
// Seq orders entries that share a scheduled time.
type Record struct {
	Seq   int64 `json:"seq"`
	Entry Entry `json:"entry"`
}

// Position returns the record's place in ledger order.
func (r Record) Position() Position {
	return Position{ScheduledTime: r.Entry.ScheduledTime, Seq: r.Seq}
}

// After reports whether r sorts strictly after p.
func (r Record) After(p Position) bool {
	if r.Entry.ScheduledTime.Equal(p.ScheduledTime) {
		return r.Seq > p.Seq
	}
	return r.Entry.ScheduledTime.After(p.ScheduledTime)
}

// Position is a point in ledger order: scheduled time, then ledger sequence.
// The zero Position sorts before every record.
type Position struct {
	ScheduledTime time.Time `json:"scheduled_time"`
	Seq           int64     `json:"seq"`
}

// IsZero reports whether p is the start of the ledger.
func (p Position) IsZero() bool {
	return p.ScheduledTime.IsZero() && p.Seq == 0
}

// Normalize truncates t to whole seconds in UTC.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
