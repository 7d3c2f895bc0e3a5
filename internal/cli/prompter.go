package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/tagtime/internal/engine"
	"github.com/roach88/tagtime/internal/ledger"
)

// HintFunc returns tags to suggest when a prompt opens.
type HintFunc func(ctx context.Context) []string

// TerminalPrompter asks for tags on a line-oriented terminal.
//
// One reader goroutine owns the input. Each line answers the open ping;
// a blank line cancels it. Lines typed while no ping is open are ignored.
type TerminalPrompter struct {
	in    io.Reader
	hints HintFunc

	mu  sync.Mutex // serializes writes to out
	out io.Writer

	open atomic.Pointer[engine.Lifecycle]
}

// NewTerminalPrompter creates a prompter reading in and writing out.
// hints may be nil.
func NewTerminalPrompter(in io.Reader, out io.Writer, hints HintFunc) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out, hints: hints}
}

// Activate shows the prompt for l. It returns immediately.
func (p *TerminalPrompter) Activate(ctx context.Context, l *engine.Lifecycle) {
	p.open.Store(l)

	var suggest []string
	if p.hints != nil {
		suggest = p.hints(ctx)
	}

	p.printf("\n[ping %s] What are you doing right now?\n", formatTime(l.ScheduledTime()))
	if len(suggest) > 0 {
		p.printf("  recent: %s\n", strings.Join(suggest, " "))
	}
	p.printf("  (blank line cancels; closes at %s)\n> ", l.Deadline().UTC().Format(time.TimeOnly))

	go p.report(ctx, l)
}

// report prints the committed entry once l is done.
func (p *TerminalPrompter) report(ctx context.Context, l *engine.Lifecycle) {
	select {
	case <-l.Done():
	case <-ctx.Done():
		return
	}
	p.open.CompareAndSwap(l, nil)

	entry, err := l.Result()
	if err != nil {
		p.printf("ping %s was NOT recorded: %v\n", formatTime(l.ScheduledTime()), err)
		return
	}
	p.printf("logged: %s\n", ledger.FormatLine(entry))
}

// Run reads input lines until ctx is cancelled or input ends.
// Reaching end of input is not an error; open pings then time out.
func (p *TerminalPrompter) Run(ctx context.Context) error {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(p.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			if err != nil {
				return fmt.Errorf("read prompt input: %w", err)
			}
			return nil
		case line := <-lines:
			p.dispatch(line)
		}
	}
}

func (p *TerminalPrompter) dispatch(line string) {
	l := p.open.Load()
	if l == nil {
		p.printf("no ping is open\n")
		return
	}

	text := strings.TrimSpace(line)
	var accepted bool
	if text == "" {
		accepted = l.Cancel()
	} else {
		accepted = l.Answer(text)
	}
	if !accepted {
		p.printf("ping %s is already closed\n", formatTime(l.ScheduledTime()))
	}
}

func (p *TerminalPrompter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}
