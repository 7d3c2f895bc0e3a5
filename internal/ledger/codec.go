package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/roach88/tagtime/internal/ping"
)

var (
	// ErrSuppressed is returned when a non-loggable outcome reaches the ledger.
	ErrSuppressed = errors.New("outcome is not loggable")

	// ErrInvalidTag is returned for tags the line format cannot represent.
	ErrInvalidTag = errors.New("invalid tag")
)

// LineError reports a parse failure with its 1-based line number.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Validate checks that an entry can be written and read back unchanged.
func Validate(e ping.Entry) error {
	if !e.Outcome.Loggable() {
		return fmt.Errorf("%w: %s", ErrSuppressed, e.Outcome)
	}
	if e.ScheduledTime.Unix() <= 0 {
		return fmt.Errorf("scheduled time %d is not positive", e.ScheduledTime.Unix())
	}
	for _, tag := range e.Tags {
		if tag == "" || strings.ContainsAny(tag, "[]") || strings.IndexFunc(tag, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
		}
	}
	// Parsing folds case-duplicates away, so they would not survive.
	if canonical := ping.NewTags(e.Tags...); len(canonical) != len(e.Tags) {
		return fmt.Errorf("%w: duplicate tags in %q", ErrInvalidTag, e.Tags.String())
	}
	return nil
}

// FormatLine renders an entry without the trailing newline.
func FormatLine(e ping.Entry) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(e.ScheduledTime.Unix(), 10))
	for _, tag := range e.Tags {
		b.WriteByte(' ')
		b.WriteString(tag)
	}
	b.WriteString(" [")
	b.WriteString(e.Outcome.String())
	b.WriteByte(' ')
	b.WriteString(e.ScheduledTime.UTC().Format(time.RFC3339))
	b.WriteByte(']')
	return b.String()
}

// ParseLine parses one non-blank, non-comment line.
func ParseLine(line string) (ping.Entry, error) {
	line = strings.TrimSpace(line)
	head, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		head, rest = line[:i], line[i:]
	}

	unix, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return ping.Entry{}, fmt.Errorf("scheduled time %q: %w", head, err)
	}
	if unix <= 0 {
		return ping.Entry{}, fmt.Errorf("scheduled time %d is not positive", unix)
	}

	outcome := ping.OutcomeAnswered
	rest = strings.TrimSpace(rest)
	if strings.HasSuffix(rest, "]") {
		open := strings.LastIndex(rest, "[")
		if open < 0 {
			return ping.Entry{}, errors.New("unbalanced annotation")
		}
		fields := strings.Fields(rest[open+1 : len(rest)-1])
		if len(fields) == 0 {
			return ping.Entry{}, errors.New("empty annotation")
		}
		outcome, err = ping.ParseOutcome(fields[0])
		if err != nil {
			return ping.Entry{}, err
		}
		rest = rest[:open]
	}

	return ping.Entry{
		ScheduledTime: time.Unix(unix, 0).UTC(),
		Tags:          ping.SplitTags(rest),
		Outcome:       outcome,
	}, nil
}

// Read parses every entry from r.
func Read(r io.Reader) ([]ping.Entry, error) {
	var entries []ping.Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		text := scanner.Text()
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		e, err := ParseLine(trimmed)
		if err != nil {
			return nil, &LineError{Line: n, Text: text, Err: err}
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return entries, nil
}

// Write renders entries to w, one line each.
func Write(w io.Writer, entries []ping.Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if err := Validate(e); err != nil {
			return fmt.Errorf("write ledger: %w", err)
		}
		if _, err := bw.WriteString(FormatLine(e) + "\n"); err != nil {
			return fmt.Errorf("write ledger: %w", err)
		}
	}
	return bw.Flush()
}
