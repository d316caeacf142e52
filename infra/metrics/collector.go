package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/printfleet/core/metrics"
	"github.com/kilianp07/printfleet/core/notify"
	"github.com/kilianp07/printfleet/internal/eventbus"
)

// StartNotificationCollector counts notifications published on bus when the
// sink records them. It stops when ctx is canceled or the bus is closed.
func StartNotificationCollector(ctx context.Context, bus *eventbus.TypedBus[notify.Notification], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.NotificationRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-sub:
				if !ok {
					return
				}
				_ = rec.RecordNotification(coremetrics.NotificationEvent{Kind: string(n.Kind), Time: n.Time})
			}
		}
	}()
}
