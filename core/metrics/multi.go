package metrics

// MultiSink fans out records to several sinks. Optional recorders are only
// forwarded to sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordBatch forwards the batch to all sinks, returning the first error.
func (m *MultiSink) RecordBatch(ev BatchEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordBatch(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordJobTransition(ev JobTransitionEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(JobTransitionRecorder); ok {
			if err := r.RecordJobTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordSummary(ev SummaryEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(SummaryRecorder); ok {
			if err := r.RecordSummary(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordCancel(ev CancelEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(CancelRecorder); ok {
			if err := r.RecordCancel(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordReadiness(ev ReadinessEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(ReadinessRecorder); ok {
			if err := r.RecordReadiness(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordNotification(ev NotificationEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(NotificationRecorder); ok {
			if err := r.RecordNotification(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		Close(s)
	}
}

// Close releases sink resources when the sink exposes a Close method.
func Close(s MetricsSink) {
	if c, ok := s.(interface{ Close() }); ok {
		c.Close()
	}
}
