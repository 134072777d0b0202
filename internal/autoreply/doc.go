// Package autoreply finds inbox threads the mailbox owner has not answered,
// sends them a fixed reply and tags them with a marker label.
//
// A Scan lists the first page of INBOX, visits each thread once and records
// a ThreadOutcome per thread. A thread is skipped when the owner already wrote
// in it; otherwise the reply is sent and, only if sending succeeded, the label
// is resolved (get-or-create) and applied. Nothing is retried.
package autoreply
