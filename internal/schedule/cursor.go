package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrCorruptCursor marks a persisted cursor that cannot be trusted.
// It is fatal: guessing a last fire time risks duplicate or skipped pings.
var ErrCorruptCursor = errors.New("corrupt scheduler cursor")

// Cursor is the only mutable scheduler state that survives a restart.
type Cursor struct {
	Seed              Seed
	AverageGapSeconds int64
	// LastFireTime is zero until the bootstrap ping of the first run.
	LastFireTime time.Time
}

// HasFired reports whether a ping time has ever been recorded.
func (c Cursor) HasFired() bool {
	return !c.LastFireTime.IsZero()
}

// Validate checks the invariants a persisted cursor must satisfy.
func (c Cursor) Validate() error {
	if c.Seed.IsZero() {
		return fmt.Errorf("cursor: %w: all zero", ErrInvalidSeed)
	}
	if c.AverageGapSeconds < 1 {
		return fmt.Errorf("cursor: average gap %ds is below 1s", c.AverageGapSeconds)
	}
	if c.HasFired() && c.LastFireTime.Unix() <= 0 {
		return fmt.Errorf("cursor: last fire time %d is not a valid unix time", c.LastFireTime.Unix())
	}
	return nil
}

// Generator returns the generator for this cursor's seed and gap.
func (c Cursor) Generator() (*Generator, error) {
	return NewGenerator(c.Seed, time.Duration(c.AverageGapSeconds)*time.Second)
}
