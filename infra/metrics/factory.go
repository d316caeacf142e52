package metrics

import (
	"github.com/kilianp07/printfleet/core/factory"
	coremetrics "github.com/kilianp07/printfleet/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// init registers the infrastructure sinks next to the core "nop" sink.
func init() {
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}
