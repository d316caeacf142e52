package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/printfleet/core/metrics"
	"github.com/kilianp07/printfleet/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxConfig locates an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes batch progress, job transitions and cancel outcomes to
// InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A trailing
// /api/v2/write is accepted and stripped.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the instance and returns a NopSink when
// the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBatch writes the fleet counters of one reconciliation pass.
func (s *InfluxSink) RecordBatch(ev coremetrics.BatchEvent) error {
	p := write.NewPointWithMeasurement("dispatch_batch").
		AddTag("component", "dispatch_tracker").
		AddField("total", ev.Total).
		AddField("dispatched", ev.Dispatched).
		AddField("processing", ev.Processing).
		AddField("completed", ev.Completed).
		AddField("failed", ev.Failed).
		AddField("jobs", ev.Jobs).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordJobTransition writes one job status change.
func (s *InfluxSink) RecordJobTransition(ev coremetrics.JobTransitionEvent) error {
	from := string(ev.From)
	if from == "" {
		from = "new"
	}
	p := write.NewPointWithMeasurement("dispatch_job_transition").
		AddTag("job_id", strconv.Itoa(ev.JobID)).
		AddTag("printer", ev.PrinterName).
		AddTag("to", string(ev.To)).
		AddField("from", from).
		AddField("terminal", ev.To.Terminal()).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSummary writes the totals of a finished batch.
func (s *InfluxSink) RecordSummary(ev coremetrics.SummaryEvent) error {
	p := write.NewPointWithMeasurement("dispatch_batch_summary").
		AddTag("component", "dispatch_tracker").
		AddField("total", ev.Total).
		AddField("completed", ev.Completed).
		AddField("failed", ev.Failed).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordCancel writes a cancel outcome and its latency.
func (s *InfluxSink) RecordCancel(ev coremetrics.CancelEvent) error {
	p := write.NewPointWithMeasurement("dispatch_cancel").
		AddTag("job_id", strconv.Itoa(ev.JobID)).
		AddTag("outcome", ev.Outcome).
		AddField("latency_ms", ev.Latency.Milliseconds()).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
