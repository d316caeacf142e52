package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/internal/eventbus"
)

func TestBusNotifierPublishes(t *testing.T) {
	bus := eventbus.NewTyped[Notification]()
	defer bus.Close()
	sub := bus.Subscribe()
	n := NewBusNotifier(bus)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	n.ShowBatch(model.DispatchBatch{Total: 2, Dispatched: 2})
	got := <-sub
	assert.Equal(t, KindBatchUpdate, got.Kind)
	assert.Equal(t, BatchNotificationID, got.ID)
	require.NotNil(t, got.Batch)
	assert.Equal(t, 2, got.Batch.Total)
	assert.Equal(t, fixed, got.Time)

	n.DismissBatch()
	assert.Equal(t, KindBatchDismiss, (<-sub).Kind)

	n.Transient(KindSummary, "done")
	got = <-sub
	assert.Equal(t, KindSummary, got.Kind)
	assert.Equal(t, "done", got.Message)
	assert.Empty(t, got.ID)
}

type countingNotifier struct{ show, dismiss, transient int }

func (c *countingNotifier) ShowBatch(model.DispatchBatch) { c.show++ }
func (c *countingNotifier) DismissBatch()                 { c.dismiss++ }
func (c *countingNotifier) Transient(Kind, string)        { c.transient++ }

func TestMultiFansOut(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	m := Multi{a, b, Nop{}}
	m.ShowBatch(model.DispatchBatch{})
	m.DismissBatch()
	m.Transient(KindError, "x")
	for _, c := range []*countingNotifier{a, b} {
		assert.Equal(t, 1, c.show)
		assert.Equal(t, 1, c.dismiss)
		assert.Equal(t, 1, c.transient)
	}
}
