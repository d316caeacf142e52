package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/printfleet/core/factory"
	coremetrics "github.com/kilianp07/printfleet/core/metrics"
	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/core/notify"
	"github.com/kilianp07/printfleet/internal/eventbus"
)

func TestPromSink_RecordBatch(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.RecordBatch(coremetrics.BatchEvent{Total: 4, Dispatched: 2, Processing: 1, Failed: 1}))
	require.NoError(t, sink.RecordBatch(coremetrics.BatchEvent{Total: 4, Processing: 1, Completed: 2, Failed: 1}))

	expected := `
# HELP printfleet_dispatch_jobs Jobs of the current batch by status as reported by the dispatch service
# TYPE printfleet_dispatch_jobs gauge
printfleet_dispatch_jobs{status="completed"} 2
printfleet_dispatch_jobs{status="dispatched"} 0
printfleet_dispatch_jobs{status="failed"} 1
printfleet_dispatch_jobs{status="processing"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(sink.jobs, strings.NewReader(expected)))
	assert.InDelta(t, 2, testutil.ToFloat64(sink.events), 0)
}

func TestPromSink_Recorders(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.RecordJobTransition(coremetrics.JobTransitionEvent{To: model.JobCompleted}))
	require.NoError(t, sink.RecordJobTransition(coremetrics.JobTransitionEvent{To: model.JobCompleted}))
	require.NoError(t, sink.RecordSummary(coremetrics.SummaryEvent{Total: 2, Completed: 1, Failed: 1}))
	require.NoError(t, sink.RecordCancel(coremetrics.CancelEvent{Outcome: "error", Latency: 30 * time.Millisecond}))
	require.NoError(t, sink.RecordReadiness(coremetrics.ReadinessEvent{Mode: model.ModeSpecificPrinters, Status: model.MatchPartial}))
	require.NoError(t, sink.RecordNotification(coremetrics.NotificationEvent{Kind: "summary"}))

	assert.InDelta(t, 2, testutil.ToFloat64(sink.transitions.WithLabelValues("completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(sink.summaries.WithLabelValues("with_failures")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(sink.cancels.WithLabelValues("error")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(sink.cancelLatency))
	assert.InDelta(t, 1, testutil.ToFloat64(sink.readiness.WithLabelValues("printers", "partial")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(sink.notifications.WithLabelValues("summary")), 0)
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, a.RecordBatch(coremetrics.BatchEvent{}))
	require.NoError(t, b.RecordBatch(coremetrics.BatchEvent{}))
	assert.InDelta(t, 2, testutil.ToFloat64(a.events), 0)
}

func TestFactoryBuildsPrometheusSink(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, sink)

	_, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "unknown"}})
	assert.Error(t, err)
}

func TestNotificationCollector(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)
	bus := eventbus.NewTyped[notify.Notification]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartNotificationCollector(ctx, bus, sink)
	n := notify.NewBusNotifier(bus)
	n.Transient(notify.KindError, "boom")
	n.DismissBatch()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.notifications.WithLabelValues("error")) == 1 &&
			testutil.ToFloat64(sink.notifications.WithLabelValues("batch_dismiss")) == 1
	}, time.Second, 10*time.Millisecond)
	bus.Close()
}
