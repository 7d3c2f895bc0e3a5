// Package schedule implements the deterministic ping timestamp generator.
//
// Ping times approximate a Poisson process: each gap is exponentially
// distributed with the configured mean. The pseudo-random draw for a gap is
// a keyed function of the seed and the previous timestamp, so the sequence
// is a pure function of (seed, average gap, starting point):
//   - a restarted process resumes the exact same schedule from its cursor
//   - two devices sharing a seed and anchor agree on every ping time
//
// Nothing in this package reads the wall clock.
package schedule
