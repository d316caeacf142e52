// Package fleet declares the contracts between the dispatch core and the
// printer management backend. Implementations live in infra/.
package fleet

import (
	"context"

	"github.com/kilianp07/printfleet/core/model"
)

// InventorySource returns the spools currently loaded in a printer. Each
// result is a full replacement of the previous snapshot.
type InventorySource interface {
	LoadedFilaments(ctx context.Context, printerID int) ([]model.LoadedFilament, error)
}

// StatusRefresher asks the backend to re-read a printer's status. Completion
// is observed through the next InventorySource snapshot.
type StatusRefresher interface {
	RefreshPrinterStatus(ctx context.Context, printerID int) error
}

// ModelCatalog lists the printer models known to the fleet.
type ModelCatalog interface {
	PrinterModels(ctx context.Context) ([]string, error)
}

// JobCanceller cancels a background dispatch job.
type JobCanceller interface {
	CancelJob(ctx context.Context, jobID int) (model.CancelResult, error)
}

// JobSubmitter hands a confirmed dispatch to the backend.
type JobSubmitter interface {
	SubmitDispatch(ctx context.Context, req model.DispatchRequest) error
}

// EventSource delivers dispatch progress events in arrival order until ctx
// is done. Run blocks and returns nil on a clean shutdown.
type EventSource interface {
	Run(ctx context.Context, out chan<- model.DispatchEvent) error
}
