// Package route decides which graphs a ledger entry is submitted to.
//
// A rule names a graph, a set of required tags and a set of excluded tags.
// An entry matches a rule when it carries none of the excluded tags and
// either the rule requires nothing or the entry carries at least one
// required tag. Matching is case-insensitive and multi-valued: one entry
// may go to any number of graphs.
//
// Rules are written in the compact form used by the settings file:
//
//	work|job work            at least one of job, work
//	computeridle|afk retro -off
//	nafk|-afk                anything without afk
package route
