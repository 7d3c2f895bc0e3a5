// Package submit offers routed ledger entries to external graphs.
//
// For each graph the Queue derives the batch from the ledger on every
// flush: routed records after the graph's watermark in incremental mode,
// every routed record in full mode. The Submitter collaborator does the
// actual delivery; the queue only reports per-batch success or failure.
//
// The watermark is a ping.Position (scheduled time, then ledger sequence),
// so entries sharing a scheduled time are never skipped. It advances only
// after the submitter confirms a batch.
//
// Retry policy belongs to the caller. A failed batch leaves the watermark
// untouched and is offered again on the next flush.
package submit
