package metrics

import (
	"time"

	"github.com/kilianp07/printfleet/core/model"
)

// BatchEvent is the fleet counters after one reconciliation pass.
type BatchEvent struct {
	Total      int
	Dispatched int
	Processing int
	Completed  int
	Failed     int
	Jobs       int
	Time       time.Time
}

// MetricsSink records dispatch batch progress.
type MetricsSink interface {
	RecordBatch(ev BatchEvent) error
}

// JobTransitionEvent is emitted when a tracked job changes status. From is
// empty for jobs seen for the first time.
type JobTransitionEvent struct {
	JobID       int
	PrinterName string
	From        model.JobStatus
	To          model.JobStatus
	Time        time.Time
}

// JobTransitionRecorder records job status changes.
type JobTransitionRecorder interface {
	RecordJobTransition(ev JobTransitionEvent) error
}

// SummaryEvent is emitted once per finished batch.
type SummaryEvent struct {
	Total     int
	Completed int
	Failed    int
	Time      time.Time
}

// SummaryRecorder records batch completion summaries.
type SummaryRecorder interface {
	RecordSummary(ev SummaryEvent) error
}

// CancelEvent records the outcome of a cancel request. Outcome is the status
// acknowledged by the backend, or "error".
type CancelEvent struct {
	JobID   int
	Outcome string
	Latency time.Duration
	Time    time.Time
}

// CancelRecorder records cancel outcomes.
type CancelRecorder interface {
	RecordCancel(ev CancelEvent) error
}

// ReadinessEvent captures one fleet readiness evaluation.
type ReadinessEvent struct {
	Mode     model.AssignmentMode
	Status   model.MatchStatus
	Printers int
	Time     time.Time
}

// ReadinessRecorder records readiness evaluations.
type ReadinessRecorder interface {
	RecordReadiness(ev ReadinessEvent) error
}

// NotificationEvent counts one published notification by kind.
type NotificationEvent struct {
	Kind string
	Time time.Time
}

// NotificationRecorder records notifications published to the UI.
type NotificationRecorder interface {
	RecordNotification(ev NotificationEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordBatch(BatchEvent) error                 { return nil }
func (NopSink) RecordJobTransition(JobTransitionEvent) error { return nil }
func (NopSink) RecordSummary(SummaryEvent) error             { return nil }
func (NopSink) RecordCancel(CancelEvent) error               { return nil }
func (NopSink) RecordReadiness(ReadinessEvent) error         { return nil }
func (NopSink) RecordNotification(NotificationEvent) error   { return nil }
