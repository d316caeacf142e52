package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/printfleet/core/metrics"
)

// PromSink exposes dispatch tracking and readiness in Prometheus metrics.
type PromSink struct {
	events        prometheus.Counter
	jobs          *prometheus.GaugeVec
	transitions   *prometheus.CounterVec
	summaries     *prometheus.CounterVec
	cancels       *prometheus.CounterVec
	cancelLatency prometheus.Histogram
	readiness     *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The exposition server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. Collectors already
// registered by an earlier sink are reused. A nil reg defaults to the global
// registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.events, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "printfleet_dispatch_events_total",
		Help: "Dispatch progress events reconciled",
	})); err != nil {
		return nil, err
	}
	if s.jobs, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "printfleet_dispatch_jobs",
		Help: "Jobs of the current batch by status as reported by the dispatch service",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "printfleet_job_transitions_total",
		Help: "Job status changes observed by the tracker",
	}, []string{"to"})); err != nil {
		return nil, err
	}
	if s.summaries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "printfleet_batch_summaries_total",
		Help: "Finished dispatch batches",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.cancels, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "printfleet_cancel_requests_total",
		Help: "Cancel requests by acknowledged status",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.cancelLatency, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "printfleet_cancel_latency_seconds",
		Help:    "Time until the dispatch service answered a cancel request",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.readiness, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "printfleet_readiness_evaluations_total",
		Help: "Fleet readiness evaluations by mode and aggregated match status",
	}, []string{"mode", "status"})); err != nil {
		return nil, err
	}
	if s.notifications, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "printfleet_notifications_total",
		Help: "Notifications published by kind",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordBatch(ev coremetrics.BatchEvent) error {
	s.events.Inc()
	s.jobs.WithLabelValues("dispatched").Set(float64(ev.Dispatched))
	s.jobs.WithLabelValues("processing").Set(float64(ev.Processing))
	s.jobs.WithLabelValues("completed").Set(float64(ev.Completed))
	s.jobs.WithLabelValues("failed").Set(float64(ev.Failed))
	return nil
}

func (s *PromSink) RecordJobTransition(ev coremetrics.JobTransitionEvent) error {
	s.transitions.WithLabelValues(string(ev.To)).Inc()
	return nil
}

func (s *PromSink) RecordSummary(ev coremetrics.SummaryEvent) error {
	outcome := "clean"
	if ev.Failed > 0 {
		outcome = "with_failures"
	}
	s.summaries.WithLabelValues(outcome).Inc()
	return nil
}

func (s *PromSink) RecordCancel(ev coremetrics.CancelEvent) error {
	s.cancels.WithLabelValues(ev.Outcome).Inc()
	s.cancelLatency.Observe(ev.Latency.Seconds())
	return nil
}

func (s *PromSink) RecordReadiness(ev coremetrics.ReadinessEvent) error {
	s.readiness.WithLabelValues(string(ev.Mode), string(ev.Status)).Inc()
	return nil
}

func (s *PromSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	s.notifications.WithLabelValues(ev.Kind).Inc()
	return nil
}
