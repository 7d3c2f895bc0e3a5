// Package ping defines the data model shared by every tagtime component.
//
// This package contains value types only. All other internal packages
// import ping; ping imports nothing internal.
//
// Key design constraints:
//   - ScheduledTime is authoritative and always whole seconds in UTC
//   - Entries are immutable once appended to the ledger
//   - Tag comparison is case-insensitive; the original spelling is kept for the log
package ping
