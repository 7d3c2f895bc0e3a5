package testutil

import "github.com/roach88/tagtime/internal/schedule"

// FixedSeed returns a deterministic seed whose bytes are 1..32.
//
// The golden schedules under testdata/ are generated from this seed.
func FixedSeed() schedule.Seed {
	var s schedule.Seed
	for i := range s {
		s[i] = byte(i + 1)
	}
	return s
}

// FixedSeedSource returns a seed generator that always yields seed.
//
// Implements the engine.WithSeedSource signature.
func FixedSeedSource(seed schedule.Seed) func() (schedule.Seed, error) {
	return func() (schedule.Seed, error) {
		return seed, nil
	}
}
