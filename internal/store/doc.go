// Package store provides SQLite-backed durable state for tagtime.
//
// The ping ledger itself is a human-editable text file (see package ledger).
// This store holds everything the scheduler and submission queue need to
// resume exactly where they left off:
//   - Cursor: seed, average gap and last fire time (single row)
//   - Watermarks: per-graph high-water mark of entries already submitted
//   - Submissions: audit log of every attempted batch
//   - Tag counts: how often each tag was answered, for prompt suggestions
//
// # Critical Patterns
//
// Cursor before commit:
//   - SaveCursor returns only after the row is durable (synchronous=FULL)
//   - The scheduler persists the advanced cursor before the matching ping
//     may resolve, so a crash never re-fires a timestamp
//
// Fail loudly:
//   - A cursor row that does not validate is reported as
//     schedule.ErrCorruptCursor and never repaired automatically
//
// Deterministic reads:
//   - Every list query has a total ORDER BY
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=FULL: cursor writes survive power loss
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
