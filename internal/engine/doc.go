// Package engine runs the ping schedule.
//
// ARCHITECTURE:
//
// Scheduler loop:
// One goroutine per user session walks the deterministic ping chain.
// Each tick moves Idle → WaitingForTimer → Firing → Idle:
// 1. Compute the next ping time from the cursor's last fire time
// 2. Wait on the owned clock until it arrives (the only suspension point)
// 3. Resolve any lifecycle still open from the previous tick
// 4. Persist the advanced cursor
// 5. Commit a Retro "afk off" entry if the wake-up was late
// 6. Activate a PingLifecycle and hand it to the Prompter
//
// PingLifecycle:
// One goroutine per open ping consumes a typed event queue fed by
// Answer/Cancel (from the prompt UI) and the auto-timeout timer. The first
// event wins; the entry is committed exactly once.
//
// CRITICAL PATTERNS:
//
// At-most-once scheduling:
// The cursor write for a ping time happens-before its lifecycle can
// resolve. A crash at any point never re-fires a timestamp.
//
// Cancellation only at the wait:
// Context cancellation is observed while waiting for the timer and
// nowhere else. Writes run under context.WithoutCancel.
//
// Ledger durability:
// A lifecycle is terminal only after the ledger confirms the append.
// Transient write failures are retried with capped exponential backoff,
// blocking further scheduler progress.
package engine
