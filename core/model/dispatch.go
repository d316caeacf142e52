package model

import "strings"

// JobStatus is the lifecycle state of one dispatch job.
type JobStatus string

const (
	JobDispatched JobStatus = "dispatched"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further progress is expected.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Weight orders jobs for display; failures surface first.
func (s JobStatus) Weight() int {
	switch s {
	case JobFailed:
		return 0
	case JobProcessing:
		return 1
	case JobDispatched:
		return 2
	case JobCompleted:
		return 3
	case JobCancelled:
		return 4
	default:
		return 5
	}
}

// ParseJobStatus maps the status strings reported by the dispatch service.
// The second return value is false for statuses that do not describe a job
// state, such as "idle".
func ParseJobStatus(s string) (JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dispatched", "queued", "pending":
		return JobDispatched, true
	case "processing", "uploading", "starting", "printing":
		return JobProcessing, true
	case "completed", "complete", "success":
		return JobCompleted, true
	case "failed", "error":
		return JobFailed, true
	case "cancelled", "canceled":
		return JobCancelled, true
	default:
		return "", false
	}
}

// DispatchJob is one printer-targeted submission tracked by the dispatch view.
// Optional fields are nil when unknown.
type DispatchJob struct {
	JobID             int       `json:"job_id"`
	SourceName        string    `json:"source_name"`
	PrinterName       string    `json:"printer_name"`
	Status            JobStatus `json:"status"`
	Message           *string   `json:"message,omitempty"`
	UploadBytes       *int64    `json:"upload_bytes,omitempty"`
	UploadTotalBytes  *int64    `json:"upload_total_bytes,omitempty"`
	UploadProgressPct *float64  `json:"upload_progress_pct,omitempty"`
}

// DispatchBatch is the reconciled view of the current background dispatch.
type DispatchBatch struct {
	Total      int           `json:"total"`
	Dispatched int           `json:"dispatched"`
	Processing int           `json:"processing"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	Jobs       []DispatchJob `json:"jobs"`
}

// HasActiveWork reports whether jobs are still queued or running.
func (b DispatchBatch) HasActiveWork() bool { return b.Dispatched+b.Processing > 0 }

// AllDone reports whether every job of a non-empty batch has finished.
func (b DispatchBatch) AllDone() bool {
	return b.Total > 0 && b.Completed+b.Failed >= b.Total && !b.HasActiveWork()
}

// JobRef identifies a job in a dispatch event. JobID is nil when the
// payload omitted it.
type JobRef struct {
	JobID       *int   `json:"job_id"`
	SourceName  string `json:"source_name"`
	PrinterID   int    `json:"printer_id,omitempty"`
	PrinterName string `json:"printer_name"`
}

// ActiveJob is a job currently being uploaded, queued or started.
type ActiveJob struct {
	JobRef
	Message           *string  `json:"message,omitempty"`
	UploadBytes       *int64   `json:"upload_bytes,omitempty"`
	UploadTotalBytes  *int64   `json:"upload_total_bytes,omitempty"`
	UploadProgressPct *float64 `json:"upload_progress_pct,omitempty"`
}

// RecentEvent is the latest named transition reported by the service.
type RecentEvent struct {
	JobRef
	Status  string  `json:"status"`
	Message *string `json:"message,omitempty"`
}

// Idle reports whether the service declared the dispatch queue idle.
func (e RecentEvent) Idle() bool { return strings.EqualFold(strings.TrimSpace(e.Status), "idle") }

// DispatchEvent is one progress update from the dispatch service.
// ActiveJob is the single-job form older services send instead of ActiveJobs.
type DispatchEvent struct {
	Total          int          `json:"total"`
	Dispatched     int          `json:"dispatched"`
	Processing     int          `json:"processing"`
	Completed      int          `json:"completed"`
	Failed         int          `json:"failed"`
	DispatchedJobs []JobRef     `json:"dispatched_jobs"`
	ActiveJobs     []ActiveJob  `json:"active_jobs"`
	ActiveJob      *ActiveJob   `json:"active_job,omitempty"`
	RecentEvent    *RecentEvent `json:"recent_event,omitempty"`
}

// Active returns the active job list, folding in the single-job form.
func (e DispatchEvent) Active() []ActiveJob {
	if e.ActiveJob == nil {
		return e.ActiveJobs
	}
	for _, a := range e.ActiveJobs {
		if a.JobID != nil && e.ActiveJob.JobID != nil && *a.JobID == *e.ActiveJob.JobID {
			return e.ActiveJobs
		}
	}
	out := make([]ActiveJob, 0, len(e.ActiveJobs)+1)
	out = append(out, e.ActiveJobs...)
	return append(out, *e.ActiveJob)
}

// AssignmentMode selects how a job is bound to printers.
type AssignmentMode string

const (
	ModeSpecificPrinters AssignmentMode = "printers"
	ModeModel            AssignmentMode = "model"
)

// DispatchTarget is one printer of a specific-printer dispatch. AMSMapping is
// indexed by slot id - 1 and holds global tray ids, -1 when unmapped.
type DispatchTarget struct {
	PrinterID  int   `json:"printer_id"`
	AMSMapping []int `json:"ams_mapping,omitempty"`
}

// DispatchRequest is what the job submission collaborator receives.
type DispatchRequest struct {
	FileID      int              `json:"file_id"`
	Mode        AssignmentMode   `json:"mode"`
	Targets     []DispatchTarget `json:"targets,omitempty"`
	TargetModel string           `json:"target_model,omitempty"`
}

// CancelResult is the acknowledgement returned by a cancel request.
type CancelResult struct {
	Status string `json:"status"`
}
