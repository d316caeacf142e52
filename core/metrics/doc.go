// Package metrics defines the observability contract of the dispatch core.
//
// Every sink implements MetricsSink, which receives one BatchEvent per
// reconciled dispatch event. Optional recorder interfaces (job transitions,
// summaries, cancellations, readiness) are detected with type assertions so
// a sink only implements what it can store. Sinks are built from
// configuration through a factory registry; several configured sinks are
// combined into a MultiSink.
package metrics
