// Package ledger implements the append-only ping log.
//
// The ledger is a plain text file with one entry per line:
//
//	1700000000 job coding [answered 2023-11-14T22:13:20Z]
//	1700002700 afk off [retro 2023-11-14T22:58:20Z]
//	1700003100 canceled [canceled 2023-11-14T23:05:00Z]
//
// The first field is the authoritative scheduled time in unix seconds. The
// bracketed annotation names the outcome and repeats the time in RFC 3339
// for humans; it is always written, but optional on read (a missing
// annotation means answered) so hand-edited lines stay valid. Blank lines
// and lines starting with '#' are ignored.
//
// An entry is committed once its line has been written and fsynced.
// Entries are never rewritten or deleted by this package.
package ledger
