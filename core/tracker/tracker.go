package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/printfleet/core/fleet"
	"github.com/kilianp07/printfleet/core/logger"
	"github.com/kilianp07/printfleet/core/metrics"
	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/core/monitoring"
	"github.com/kilianp07/printfleet/core/notify"
	"github.com/kilianp07/printfleet/core/tracker/history"
)

// DefaultMaxHistory bounds the finished jobs kept once the service stops
// reporting them.
const DefaultMaxHistory = 50

const historyTimeout = 2 * time.Second

var (
	ErrCancelInFlight = errors.New("tracker: cancel already in flight")
	ErrUnknownJob     = errors.New("tracker: job is not active")
	ErrNoCanceller    = errors.New("tracker: no job canceller configured")
)

// Config tunes the tracker.
type Config struct {
	MaxHistory int `json:"max_history"`
}

// Tracker owns the dispatch batch of one session.
type Tracker struct {
	canceller fleet.JobCanceller
	notifier  notify.Notifier
	metrics   metrics.MetricsSink
	log       logger.Logger
	history   history.Store
	now       func() time.Time

	maxHistory int
	session    string

	mu          sync.Mutex
	jobs        map[int]model.DispatchJob
	finishedAt  map[int]uint64
	live        map[int]struct{}
	cancelling  map[int]struct{}
	batch       model.DispatchBatch
	tick        uint64
	summaryKey  string
	batchShown  bool
	wg          sync.WaitGroup
}

// New returns a tracker. A nil canceller disables Cancel; other nil
// collaborators are replaced by no-op implementations.
func New(canceller fleet.JobCanceller, notifier notify.Notifier, sink metrics.MetricsSink, log logger.Logger, cfg Config) *Tracker {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = nopLogger{}
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	return &Tracker{
		canceller:  canceller,
		notifier:   notifier,
		metrics:    sink,
		log:        log,
		history:    history.NopStore{},
		now:        time.Now,
		maxHistory: cfg.MaxHistory,
		session:    uuid.NewString(),
		jobs:       make(map[int]model.DispatchJob),
		finishedAt: make(map[int]uint64),
		live:       make(map[int]struct{}),
		cancelling: make(map[int]struct{}),
	}
}

// SetHistoryStore configures where finished jobs are archived.
func (t *Tracker) SetHistoryStore(store history.Store) {
	if store == nil {
		store = history.NopStore{}
	}
	t.mu.Lock()
	t.history = store
	t.mu.Unlock()
}

// Session identifies this tracker instance in archived records.
func (t *Tracker) Session() string { return t.session }

// Run applies events in arrival order until ctx is done or events is closed.
func (t *Tracker) Run(ctx context.Context, events <-chan model.DispatchEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.Apply(ev)
		case <-ctx.Done():
			return
		}
	}
}

// Batch returns a copy of the current batch.
func (t *Tracker) Batch() model.DispatchBatch {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.batch
	b.Jobs = append([]model.DispatchJob(nil), t.batch.Jobs...)
	return b
}

// Cancelling reports whether a cancel request for jobID is pending.
func (t *Tracker) Cancelling(jobID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.cancelling[jobID]
	return ok
}

// CancellingIDs lists pending cancel requests in ascending order.
func (t *Tracker) CancellingIDs() []int {
	t.mu.Lock()
	ids := make([]int, 0, len(t.cancelling))
	for id := range t.cancelling {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Ints(ids)
	return ids
}

// History queries the archive of finished jobs.
func (t *Tracker) History(ctx context.Context, q history.Query) ([]history.Record, error) {
	t.mu.Lock()
	store := t.history
	t.mu.Unlock()
	return store.Query(ctx, q)
}

// Apply reconciles one event and returns the resulting batch.
func (t *Tracker) Apply(ev model.DispatchEvent) model.DispatchBatch {
	t.mu.Lock()
	t.tick++
	prev := t.jobs
	next := make(map[int]model.DispatchJob, len(prev))
	live := make(map[int]struct{})

	for _, ref := range ev.DispatchedJobs {
		if ref.JobID == nil {
			t.log.Debugw("dropping dispatched job without id", map[string]any{"printer": ref.PrinterName})
			continue
		}
		id := *ref.JobID
		live[id] = struct{}{}
		if old, ok := prev[id]; ok && old.Status.Terminal() {
			next[id] = old
			continue
		}
		next[id] = model.DispatchJob{
			JobID:       id,
			SourceName:  ref.SourceName,
			PrinterName: ref.PrinterName,
			Status:      model.JobDispatched,
		}
	}

	for _, a := range ev.Active() {
		if a.JobID == nil {
			t.log.Debugw("dropping active job without id", map[string]any{"printer": a.PrinterName})
			continue
		}
		id := *a.JobID
		live[id] = struct{}{}
		if old, ok := prev[id]; ok && old.Status.Terminal() {
			next[id] = old
			continue
		}
		next[id] = model.DispatchJob{
			JobID:             id,
			SourceName:        a.SourceName,
			PrinterName:       a.PrinterName,
			Status:            model.JobProcessing,
			Message:           a.Message,
			UploadBytes:       a.UploadBytes,
			UploadTotalBytes:  a.UploadTotalBytes,
			UploadProgressPct: a.UploadProgressPct,
		}
	}

	idle := false
	if re := ev.RecentEvent; re != nil {
		idle = re.Idle()
		t.applyRecent(*re, prev, next)
	}

	for id, old := range prev {
		if _, ok := next[id]; ok || !old.Status.Terminal() {
			continue
		}
		next[id] = old
	}

	var records []history.Record
	stamp := t.now()
	for id, job := range next {
		from := prev[id].Status
		if from == job.Status {
			continue
		}
		t.recordTransition(job, from, stamp)
		if job.Status.Terminal() {
			if _, seen := t.finishedAt[id]; !seen {
				t.finishedAt[id] = t.tick
				records = append(records, t.record(job, stamp))
			}
		}
	}

	t.evict(next, live)

	for id := range t.cancelling {
		if _, ok := live[id]; !ok {
			delete(t.cancelling, id)
		}
	}

	t.jobs = next
	t.live = live
	t.batch = model.DispatchBatch{
		Total:      ev.Total,
		Dispatched: ev.Dispatched,
		Processing: ev.Processing,
		Completed:  ev.Completed,
		Failed:     ev.Failed,
		Jobs:       ordered(next),
	}
	batch := t.batch
	t.recordBatch(batch, stamp)
	t.notify(batch, idle, stamp)
	store := t.history
	t.mu.Unlock()

	t.archive(store, records)
	return batch
}

// applyRecent folds the latest named transition into next. A terminal job is
// only overwritten by another terminal status.
func (t *Tracker) applyRecent(re model.RecentEvent, prev, next map[int]model.DispatchJob) {
	if re.JobID == nil {
		return
	}
	status, ok := model.ParseJobStatus(re.Status)
	if !ok {
		return
	}
	id := *re.JobID
	job, found := next[id]
	if !found {
		job, found = prev[id]
	}
	if !found {
		job = model.DispatchJob{JobID: id, SourceName: re.SourceName, PrinterName: re.PrinterName}
	}
	if job.Status.Terminal() && !status.Terminal() {
		t.log.Debugw("ignoring non-terminal event for finished job", map[string]any{"job_id": id, "status": string(status)})
		next[id] = job
		return
	}
	if job.Status.Terminal() && job.Status != status {
		t.log.Warnf("job %d overwritten from %s to %s", id, job.Status, status)
	}
	job.Status = status
	if re.Message != nil {
		job.Message = re.Message
	}
	if job.PrinterName == "" {
		job.PrinterName = re.PrinterName
	}
	if job.SourceName == "" {
		job.SourceName = re.SourceName
	}
	next[id] = job
}

// evict drops the oldest finished jobs the service no longer reports once
// more than maxHistory of them are held.
func (t *Tracker) evict(next map[int]model.DispatchJob, live map[int]struct{}) {
	var stale []int
	for id, job := range next {
		if _, ok := live[id]; ok || !job.Status.Terminal() {
			continue
		}
		stale = append(stale, id)
	}
	if len(stale) <= t.maxHistory {
		return
	}
	sort.Slice(stale, func(i, j int) bool {
		a, b := t.finishedAt[stale[i]], t.finishedAt[stale[j]]
		if a != b {
			return a < b
		}
		return stale[i] < stale[j]
	})
	for _, id := range stale[:len(stale)-t.maxHistory] {
		delete(next, id)
		delete(t.finishedAt, id)
	}
}

func (t *Tracker) notify(batch model.DispatchBatch, idle bool, stamp time.Time) {
	if batch.HasActiveWork() {
		t.notifier.ShowBatch(batch)
		t.batchShown = true
		t.summaryKey = ""
		return
	}
	if t.batchShown || idle {
		t.notifier.DismissBatch()
		t.batchShown = false
	}
	if !batch.AllDone() {
		return
	}
	key := fmt.Sprintf("%d:%d", batch.Completed, batch.Failed)
	if key == t.summaryKey {
		return
	}
	t.summaryKey = key
	t.notifier.Transient(notify.KindSummary, summaryMessage(batch))
	if r, ok := t.metrics.(metrics.SummaryRecorder); ok {
		ev := metrics.SummaryEvent{Total: batch.Total, Completed: batch.Completed, Failed: batch.Failed, Time: stamp}
		if err := r.RecordSummary(ev); err != nil {
			t.log.Errorf("summary metrics error: %v", err)
		}
	}
}

func summaryMessage(b model.DispatchBatch) string {
	if b.Failed == 0 {
		return fmt.Sprintf("Dispatch finished: %d of %d jobs completed", b.Completed, b.Total)
	}
	return fmt.Sprintf("Dispatch finished: %d completed, %d failed", b.Completed, b.Failed)
}

func (t *Tracker) recordBatch(b model.DispatchBatch, stamp time.Time) {
	ev := metrics.BatchEvent{
		Total:      b.Total,
		Dispatched: b.Dispatched,
		Processing: b.Processing,
		Completed:  b.Completed,
		Failed:     b.Failed,
		Jobs:       len(b.Jobs),
		Time:       stamp,
	}
	if err := t.metrics.RecordBatch(ev); err != nil {
		t.log.Errorf("batch metrics error: %v", err)
	}
}

func (t *Tracker) recordTransition(job model.DispatchJob, from model.JobStatus, stamp time.Time) {
	r, ok := t.metrics.(metrics.JobTransitionRecorder)
	if !ok {
		return
	}
	ev := metrics.JobTransitionEvent{JobID: job.JobID, PrinterName: job.PrinterName, From: from, To: job.Status, Time: stamp}
	if err := r.RecordJobTransition(ev); err != nil {
		t.log.Errorf("transition metrics error: %v", err)
	}
}

func (t *Tracker) record(job model.DispatchJob, stamp time.Time) history.Record {
	rec := history.Record{
		SessionID:   t.session,
		JobID:       job.JobID,
		SourceName:  job.SourceName,
		PrinterName: job.PrinterName,
		Status:      job.Status,
		FinishedAt:  stamp,
	}
	if job.Message != nil {
		rec.Message = *job.Message
	}
	return rec
}

func (t *Tracker) archive(store history.Store, records []history.Record) {
	if len(records) == 0 {
		return
	}
	sort.Slice(records, func(i, j int) bool { return records[i].JobID < records[j].JobID })
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	for _, r := range records {
		if err := store.Append(ctx, r); err != nil {
			t.log.Errorf("archive job %d: %v", r.JobID, err)
			monitoring.CaptureException(err, map[string]string{"component": "tracker", "op": "archive"})
		}
	}
}

// Cancel asks the service to cancel jobID. The request runs in the
// background; Cancelling reports it as pending until it fails or the job
// leaves the active set.
func (t *Tracker) Cancel(ctx context.Context, jobID int) error {
	if t.canceller == nil {
		return ErrNoCanceller
	}
	t.mu.Lock()
	if _, ok := t.live[jobID]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownJob, jobID)
	}
	if _, ok := t.cancelling[jobID]; ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrCancelInFlight, jobID)
	}
	t.cancelling[jobID] = struct{}{}
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer monitoring.Recover()
		start := t.now()
		res, err := t.canceller.CancelJob(context.WithoutCancel(ctx), jobID)
		latency := t.now().Sub(start)
		if err != nil {
			t.mu.Lock()
			delete(t.cancelling, jobID)
			t.mu.Unlock()
			t.log.Warnf("cancel job %d failed: %v", jobID, err)
			monitoring.CaptureException(err, map[string]string{"component": "tracker", "op": "cancel", "job_id": strconv.Itoa(jobID)})
			t.notifier.Transient(notify.KindError, fmt.Sprintf("Failed to cancel job %d: %v", jobID, err))
			t.recordCancel(jobID, "error", latency)
			return
		}
		t.log.Infof("cancel job %d acknowledged: %s", jobID, res.Status)
		t.recordCancel(jobID, res.Status, latency)
	}()
	return nil
}

// Wait blocks until pending cancel requests return.
func (t *Tracker) Wait() { t.wg.Wait() }

func (t *Tracker) recordCancel(jobID int, outcome string, latency time.Duration) {
	r, ok := t.metrics.(metrics.CancelRecorder)
	if !ok {
		return
	}
	if err := r.RecordCancel(metrics.CancelEvent{JobID: jobID, Outcome: outcome, Latency: latency, Time: t.now()}); err != nil {
		t.log.Errorf("cancel metrics error: %v", err)
	}
}

func ordered(jobs map[int]model.DispatchJob) []model.DispatchJob {
	out := make([]model.DispatchJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		wi, wk := out[i].Status.Weight(), out[k].Status.Weight()
		if wi != wk {
			return wi < wk
		}
		return out[i].JobID < out[k].JobID
	})
	return out
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
