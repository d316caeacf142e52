// Package tracker reconciles the dispatch progress stream into one ordered
// view of the jobs of a background dispatch.
//
// Each event carries the fleet counters, the jobs freshly dispatched, the
// jobs currently uploading or starting and an optional most recent
// transition. Apply merges them in that order so the recent transition wins.
// Jobs that reached a terminal state are never revived by stale snapshots and
// stay listed after the service stops reporting them, up to a configurable
// history cap.
//
// The tracker drives a single persistent batch notification while work is
// active and emits one summary per distinct (completed, failed) pair once the
// batch is done. Cancellation is asynchronous and never blocks ingestion.
package tracker
