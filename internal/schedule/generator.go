package schedule

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"math"
	"time"
)

// DomainGap separates gap draws from any other use of the seed.
const DomainGap = "tagtime/gap/v1"

// MaxFastForwardSteps bounds FastForward. At a 45 minute gap this covers
// several centuries of pings.
const MaxFastForwardSteps = 10_000_000

// DefaultAnchor is the starting point of every schedule: the original
// TagTime "ur-ping", 2007-07-10T19:56:33Z.
var DefaultAnchor = time.Unix(1184097393, 0).UTC()

// ErrScheduleExhausted is returned when FastForward exceeds MaxFastForwardSteps.
var ErrScheduleExhausted = errors.New("schedule fast-forward exceeded step limit")

// twoPow53 is the number of distinct uniform draws.
const twoPow53 = 1 << 53

// Next returns the ping time following prev.
//
// The result is prev + round(-averageGapSeconds * ln(u)), where u in (0,1)
// comes from HMAC-SHA256(seed, DomainGap || 0x00 || prev || attempt). Draws
// that round to less than one second are rejected and redrawn with the next
// attempt number, so the result is always strictly after prev.
//
// Panics if averageGapSeconds < 1; callers validate the gap at construction.
func Next(seed Seed, averageGapSeconds int64, prev time.Time) time.Time {
	return time.Unix(NextUnix(seed, averageGapSeconds, prev.Unix()), 0).UTC()
}

// NextUnix is Next on unix seconds.
func NextUnix(seed Seed, averageGapSeconds int64, prev int64) int64 {
	if averageGapSeconds < 1 {
		panic(fmt.Sprintf("schedule: average gap must be >= 1s, got %d", averageGapSeconds))
	}
	mac := hmac.New(sha256.New, seed[:])
	for attempt := uint32(0); ; attempt++ {
		u := uniform(mac, prev, attempt)
		wait := math.Round(-float64(averageGapSeconds) * math.Log(u))
		if wait >= 1 {
			return prev + int64(wait)
		}
	}
}

// uniform derives a draw in the open interval (0,1).
func uniform(mac hash.Hash, prev int64, attempt uint32) float64 {
	var msg [len(DomainGap) + 1 + 8 + 4]byte
	n := copy(msg[:], DomainGap)
	msg[n] = 0x00
	binary.BigEndian.PutUint64(msg[n+1:], uint64(prev))
	binary.BigEndian.PutUint32(msg[n+9:], attempt)

	mac.Reset()
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	k := binary.BigEndian.Uint64(sum[:8]) >> 11
	return (float64(k) + 0.5) / twoPow53
}

// Generator binds a seed and an average gap.
//
// Thread-safety: Generator is immutable and safe for concurrent use.
type Generator struct {
	seed Seed
	gap  int64
}

// NewGenerator validates the inputs and returns a generator.
// The average gap must be at least one whole second.
func NewGenerator(seed Seed, averageGap time.Duration) (*Generator, error) {
	if seed.IsZero() {
		return nil, fmt.Errorf("new generator: %w: all zero", ErrInvalidSeed)
	}
	if averageGap < time.Second {
		return nil, fmt.Errorf("new generator: average gap %s is below 1s", averageGap)
	}
	return &Generator{seed: seed, gap: int64(averageGap / time.Second)}, nil
}

// AverageGapSeconds returns the mean gap in whole seconds.
func (g *Generator) AverageGapSeconds() int64 {
	return g.gap
}

// Next returns the ping time following prev.
func (g *Generator) Next(prev time.Time) time.Time {
	return Next(g.seed, g.gap, prev)
}

// FastForward walks the chain from anchor and returns the last ping time
// that is not after now. Returns anchor itself when anchor is after now.
func (g *Generator) FastForward(anchor, now time.Time) (time.Time, error) {
	return g.fastForward(anchor, now, MaxFastForwardSteps)
}

func (g *Generator) fastForward(anchor, now time.Time, maxSteps int) (time.Time, error) {
	t := anchor.Unix()
	limit := now.Unix()
	for steps := 0; ; steps++ {
		if steps >= maxSteps {
			return time.Time{}, fmt.Errorf("%w (%d steps from %s)", ErrScheduleExhausted, steps, anchor.UTC().Format(time.RFC3339))
		}
		next := NextUnix(g.seed, g.gap, t)
		if next > limit {
			return time.Unix(t, 0).UTC(), nil
		}
		t = next
	}
}

// Upcoming returns the n ping times after from.
func (g *Generator) Upcoming(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	t := from.Unix()
	for i := 0; i < n; i++ {
		t = NextUnix(g.seed, g.gap, t)
		out = append(out, time.Unix(t, 0).UTC())
	}
	return out
}
