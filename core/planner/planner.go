package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/printfleet/core/fleet"
	"github.com/kilianp07/printfleet/core/logger"
	"github.com/kilianp07/printfleet/core/mapping"
	"github.com/kilianp07/printfleet/core/matcher"
	"github.com/kilianp07/printfleet/core/metrics"
	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/core/notify"
)

var (
	ErrNoPrinterSelected = errors.New("planner: at least one printer must be selected")
	ErrNoModels          = errors.New("planner: no printer models available")
	ErrNoModelSelected   = errors.New("planner: no target model selected")
	ErrUnknownModel      = errors.New("planner: unknown printer model")
	ErrWrongMode         = errors.New("planner: operation not valid in current assignment mode")
)

// DefaultSettleDelay is how long Refresh waits after triggering a status
// refresh before fetching the new snapshot.
const DefaultSettleDelay = 500 * time.Millisecond

// Deps groups the collaborators used by a Planner.
type Deps struct {
	Inventory fleet.InventorySource
	Refresher fleet.StatusRefresher
	Catalog   fleet.ModelCatalog
	Store     mapping.Store
	Notifier  notify.Notifier
	Log       logger.Logger
	Metrics   metrics.MetricsSink
}

// Readiness is the fleet level view returned to the UI.
type Readiness struct {
	Mode         model.AssignmentMode       `json:"mode"`
	Printers     []model.PrinterMatchResult `json:"printers,omitempty"`
	Status       model.MatchStatus          `json:"status,omitempty"`
	MultiPrinter bool                       `json:"multi_printer"`
	TargetModel  string                     `json:"target_model,omitempty"`
	CanDispatch  bool                       `json:"can_dispatch"`
	Problem      string                     `json:"problem,omitempty"`
}

// Planner holds the assignment state of one job configuration session.
type Planner struct {
	job     model.PrintJob
	matcher matcher.Matcher
	deps    Deps
	settle  time.Duration

	mu          sync.Mutex
	mode        model.AssignmentMode
	printers    []int
	targetModel string
	snapshots   map[int][]model.LoadedFilament
}

// New creates a planner for job in specific-printer mode.
func New(job model.PrintJob, m matcher.Matcher, deps Deps) (*Planner, error) {
	if deps.Inventory == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("planner: inventory and catalog are required")
	}
	if deps.Store == nil {
		deps.Store = mapping.NewMemoryStore()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Log == nil {
		deps.Log = nopLogger{}
	}
	return &Planner{
		job:       job,
		matcher:   m,
		deps:      deps,
		settle:    DefaultSettleDelay,
		mode:      model.ModeSpecificPrinters,
		snapshots: map[int][]model.LoadedFilament{},
	}, nil
}

// SetSettleDelay overrides the refresh settle delay.
func (p *Planner) SetSettleDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.mu.Lock()
	p.settle = d
	p.mu.Unlock()
}

// Job returns the job being planned.
func (p *Planner) Job() model.PrintJob { return p.job }

// Store exposes the mapping store of the session.
func (p *Planner) Store() mapping.Store { return p.deps.Store }

// Mode returns the current assignment mode.
func (p *Planner) Mode() model.AssignmentMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SelectedPrinters returns the selected printer ids in selection order.
func (p *Planner) SelectedPrinters() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.printers...)
}

// TargetModel returns the model chosen in model mode.
func (p *Planner) TargetModel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetModel
}

// SetMode switches the assignment mode. The selection of the mode being left
// is cleared. Entering model mode preselects DefaultModel when one exists.
func (p *Planner) SetMode(ctx context.Context, mode model.AssignmentMode) error {
	switch mode {
	case model.ModeSpecificPrinters:
		p.mu.Lock()
		if p.mode != mode {
			p.mode = mode
			p.targetModel = ""
		}
		p.mu.Unlock()
		return nil
	case model.ModeModel:
		p.mu.Lock()
		if p.mode == mode {
			p.mu.Unlock()
			return nil
		}
		p.mode = mode
		p.printers = nil
		p.mu.Unlock()
		def, err := p.DefaultModel(ctx)
		if err != nil && !errors.Is(err, ErrNoModels) {
			return err
		}
		p.mu.Lock()
		if p.mode == model.ModeModel && p.targetModel == "" {
			p.targetModel = def
		}
		p.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("planner: unknown mode %q", mode)
	}
}

// SelectPrinters replaces the printer selection. Duplicate ids are dropped,
// first occurrence wins.
func (p *Planner) SelectPrinters(ids []int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != model.ModeSpecificPrinters {
		return ErrWrongMode
	}
	seen := make(map[int]bool, len(ids))
	sel := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		sel = append(sel, id)
	}
	p.printers = sel
	return nil
}

// SelectModel chooses the target model in model mode.
func (p *Planner) SelectModel(ctx context.Context, name string) error {
	if p.Mode() != model.ModeModel {
		return ErrWrongMode
	}
	models, err := p.Models(ctx)
	if err != nil {
		return err
	}
	match, ok := findModel(models, name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	p.mu.Lock()
	p.targetModel = match
	p.mu.Unlock()
	return nil
}

// Models returns the known printer models, de-duplicated and sorted.
func (p *Planner) Models(ctx context.Context) ([]string, error) {
	raw, err := p.deps.Catalog.PrinterModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list printer models: %w", err)
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// DefaultModel returns the model named in the job's slicer metadata when it
// is available, otherwise the first model alphabetically.
func (p *Planner) DefaultModel(ctx context.Context) (string, error) {
	models, err := p.Models(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", ErrNoModels
	}
	if m, ok := findModel(models, p.job.SlicerModel); ok {
		return m, nil
	}
	return models[0], nil
}

// Validate reports why the current selection cannot be dispatched, if at
// all. Match quality is never a reason.
func (p *Planner) Validate(ctx context.Context) error {
	p.mu.Lock()
	mode, printers, target := p.mode, len(p.printers), p.targetModel
	p.mu.Unlock()

	if mode == model.ModeSpecificPrinters {
		if printers == 0 {
			return ErrNoPrinterSelected
		}
		return nil
	}
	models, err := p.Models(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return ErrNoModels
	}
	if target == "" {
		return ErrNoModelSelected
	}
	if _, ok := findModel(models, target); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, target)
	}
	return nil
}

// Readiness evaluates the current selection.
func (p *Planner) Readiness(ctx context.Context) (Readiness, error) {
	p.mu.Lock()
	mode, printers, target := p.mode, append([]int(nil), p.printers...), p.targetModel
	p.mu.Unlock()

	r := Readiness{Mode: mode, TargetModel: target, MultiPrinter: len(printers) > 1}
	if mode == model.ModeSpecificPrinters {
		r.Printers = make([]model.PrinterMatchResult, 0, len(printers))
		for _, id := range printers {
			r.Printers = append(r.Printers, p.Evaluate(ctx, id))
		}
		r.Status = aggregate(r.Printers)
	}
	if err := p.Validate(ctx); err != nil {
		r.Problem = err.Error()
		if !isSelectionError(err) {
			return r, err
		}
	} else {
		r.CanDispatch = true
	}
	if rec, ok := p.deps.Metrics.(metrics.ReadinessRecorder); ok {
		ev := metrics.ReadinessEvent{Mode: mode, Status: r.Status, Printers: len(r.Printers), Time: time.Now()}
		if err := rec.RecordReadiness(ev); err != nil {
			p.deps.Log.Errorf("readiness metrics error: %v", err)
		}
	}
	return r, nil
}

// Evaluate matches the job against one printer using its cached snapshot,
// fetching one first when none is cached.
func (p *Planner) Evaluate(ctx context.Context, printerID int) model.PrinterMatchResult {
	loaded, ok := p.snapshot(ctx, printerID)
	res := p.matcher.Evaluate(printerID, p.job.Requirements, loaded, p.deps.Store.Get(printerID))
	res.IsLoading = !ok
	return res
}

// AutoConfigure discards the printer's pins and replaces them with the
// result of a fresh automatic match.
func (p *Planner) AutoConfigure(ctx context.Context, printerID int) model.PrinterMatchResult {
	loaded, ok := p.snapshot(ctx, printerID)
	if !ok {
		res := p.matcher.Evaluate(printerID, p.job.Requirements, nil, p.deps.Store.Get(printerID))
		res.IsLoading = true
		return res
	}
	assignments := p.matcher.AutoConfigure(p.job.Requirements, loaded)
	p.deps.Store.ApplyAuto(printerID, assignments)
	p.deps.Log.Debugw("auto-configured printer", map[string]any{"printer_id": printerID, "pins": len(assignments)})
	return p.matcher.Evaluate(printerID, p.job.Requirements, loaded, p.deps.Store.Get(printerID))
}

// Refresh asks the backend to re-read the printer, waits for the settle
// delay and fetches a new snapshot. On failure the previous snapshot stays.
func (p *Planner) Refresh(ctx context.Context, printerID int) error {
	if p.deps.Refresher != nil {
		if err := p.deps.Refresher.RefreshPrinterStatus(ctx, printerID); err != nil {
			p.deps.Notifier.Transient(notify.KindError, fmt.Sprintf("Failed to refresh printer %d", printerID))
			return fmt.Errorf("refresh printer %d: %w", printerID, err)
		}
		p.mu.Lock()
		settle := p.settle
		p.mu.Unlock()
		if settle > 0 {
			t := time.NewTimer(settle)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return p.load(ctx, printerID)
}

// BuildDispatchRequest validates the selection and converts it into the
// request sent to the job submission collaborator.
func (p *Planner) BuildDispatchRequest(ctx context.Context) (model.DispatchRequest, error) {
	if err := p.Validate(ctx); err != nil {
		return model.DispatchRequest{}, err
	}
	p.mu.Lock()
	mode, printers, target := p.mode, append([]int(nil), p.printers...), p.targetModel
	p.mu.Unlock()

	req := model.DispatchRequest{FileID: p.job.FileID, Mode: mode}
	if mode == model.ModeModel {
		req.TargetModel = target
		return req, nil
	}
	for _, id := range printers {
		res := p.Evaluate(ctx, id)
		req.Targets = append(req.Targets, model.DispatchTarget{PrinterID: id, AMSMapping: AMSMapping(res.Slots)})
	}
	return req, nil
}

// Submit builds the dispatch request and hands it to submitter.
func (p *Planner) Submit(ctx context.Context, submitter fleet.JobSubmitter) (model.DispatchRequest, error) {
	req, err := p.BuildDispatchRequest(ctx)
	if err != nil {
		return req, err
	}
	if err := submitter.SubmitDispatch(ctx, req); err != nil {
		return req, fmt.Errorf("submit dispatch: %w", err)
	}
	p.deps.Log.Infof("dispatched file %d in %s mode to %d targets", req.FileID, req.Mode, len(req.Targets))
	return req, nil
}

// Close ends the session: all mappings and snapshots are dropped.
func (p *Planner) Close() {
	p.deps.Store.Clear()
	p.mu.Lock()
	p.snapshots = map[int][]model.LoadedFilament{}
	p.printers = nil
	p.targetModel = ""
	p.mu.Unlock()
}

// AMSMapping converts resolved slots into the printer-facing array indexed by
// slot id - 1. Unmapped entries are -1; unconstrained requirements are not
// represented.
func AMSMapping(slots []model.SlotMatch) []int {
	maxSlot := 0
	for _, s := range slots {
		if s.Requirement.SlotID > maxSlot {
			maxSlot = s.Requirement.SlotID
		}
	}
	if maxSlot == 0 {
		return nil
	}
	out := make([]int, maxSlot)
	for i := range out {
		out[i] = -1
	}
	for _, s := range slots {
		if s.Requirement.SlotID <= 0 || s.Loaded == nil {
			continue
		}
		out[s.Requirement.SlotID-1] = s.Loaded.GlobalTrayID
	}
	return out
}

func (p *Planner) snapshot(ctx context.Context, printerID int) ([]model.LoadedFilament, bool) {
	p.mu.Lock()
	loaded, ok := p.snapshots[printerID]
	p.mu.Unlock()
	if ok {
		return loaded, true
	}
	if err := p.load(ctx, printerID); err != nil {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	loaded, ok = p.snapshots[printerID]
	return loaded, ok
}

func (p *Planner) load(ctx context.Context, printerID int) error {
	loaded, err := p.deps.Inventory.LoadedFilaments(ctx, printerID)
	if err != nil {
		p.deps.Log.Warnf("inventory for printer %d: %v", printerID, err)
		p.deps.Notifier.Transient(notify.KindError, fmt.Sprintf("Could not load filaments for printer %d", printerID))
		return fmt.Errorf("load filaments for printer %d: %w", printerID, err)
	}
	snap := make([]model.LoadedFilament, len(loaded))
	copy(snap, loaded)
	p.mu.Lock()
	p.snapshots[printerID] = snap
	p.mu.Unlock()
	return nil
}

func aggregate(results []model.PrinterMatchResult) model.MatchStatus {
	if len(results) == 0 {
		return ""
	}
	status := model.MatchFull
	for _, r := range results {
		switch r.MatchStatus {
		case model.MatchNone:
			return model.MatchNone
		case model.MatchPartial:
			status = model.MatchPartial
		}
	}
	return status
}

func findModel(models []string, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, m := range models {
		if strings.EqualFold(m, name) {
			return m, true
		}
	}
	return "", false
}

func isSelectionError(err error) bool {
	return errors.Is(err, ErrNoPrinterSelected) || errors.Is(err, ErrNoModels) ||
		errors.Is(err, ErrNoModelSelected) || errors.Is(err, ErrUnknownModel)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
