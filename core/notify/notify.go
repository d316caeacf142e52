// Package notify carries the user-facing notifications produced by the
// dispatch core: one persistent batch notification that is updated in place,
// plus transient summaries and errors.
package notify

import (
	"time"

	"github.com/kilianp07/printfleet/core/logger"
	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/internal/eventbus"
)

// Kind identifies the notification variant.
type Kind string

const (
	KindBatchUpdate  Kind = "batch_update"
	KindBatchDismiss Kind = "batch_dismiss"
	KindSummary      Kind = "summary"
	KindError        Kind = "error"
	KindInfo         Kind = "info"
)

// BatchNotificationID is the id of the single persistent batch notification.
const BatchNotificationID = "background-dispatch"

// Notification is one message published to the UI.
type Notification struct {
	ID      string               `json:"id"`
	Kind    Kind                 `json:"kind"`
	Message string               `json:"message"`
	Batch   *model.DispatchBatch `json:"batch,omitempty"`
	Time    time.Time            `json:"time"`
}

// Notifier receives notifications from the tracker and planner.
type Notifier interface {
	ShowBatch(batch model.DispatchBatch)
	DismissBatch()
	Transient(kind Kind, message string)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) ShowBatch(model.DispatchBatch) {}
func (Nop) DismissBatch()                 {}
func (Nop) Transient(Kind, string)        {}

// BusNotifier publishes notifications on a typed event bus.
type BusNotifier struct {
	bus *eventbus.TypedBus[Notification]
	now func() time.Time
}

// NewBusNotifier wraps bus. The bus stays owned by the caller.
func NewBusNotifier(bus *eventbus.TypedBus[Notification]) *BusNotifier {
	return &BusNotifier{bus: bus, now: time.Now}
}

func (n *BusNotifier) ShowBatch(batch model.DispatchBatch) {
	b := batch
	n.bus.Publish(Notification{ID: BatchNotificationID, Kind: KindBatchUpdate, Batch: &b, Time: n.now()})
}

func (n *BusNotifier) DismissBatch() {
	n.bus.Publish(Notification{ID: BatchNotificationID, Kind: KindBatchDismiss, Time: n.now()})
}

func (n *BusNotifier) Transient(kind Kind, message string) {
	n.bus.Publish(Notification{Kind: kind, Message: message, Time: n.now()})
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Log logger.Logger
}

func (n LogNotifier) ShowBatch(b model.DispatchBatch) {
	n.Log.Debugw("dispatch batch", map[string]any{
		"total": b.Total, "dispatched": b.Dispatched, "processing": b.Processing,
		"completed": b.Completed, "failed": b.Failed, "jobs": len(b.Jobs),
	})
}

func (n LogNotifier) DismissBatch() { n.Log.Debugf("dispatch batch dismissed") }

func (n LogNotifier) Transient(kind Kind, message string) {
	if kind == KindError {
		n.Log.Warnf("%s", message)
		return
	}
	n.Log.Infof("%s", message)
}

// Multi fans out to several notifiers.
type Multi []Notifier

func (m Multi) ShowBatch(b model.DispatchBatch) {
	for _, n := range m {
		n.ShowBatch(b)
	}
}

func (m Multi) DismissBatch() {
	for _, n := range m {
		n.DismissBatch()
	}
}

func (m Multi) Transient(kind Kind, message string) {
	for _, n := range m {
		n.Transient(kind, message)
	}
}
