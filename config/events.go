package config

import (
	"fmt"
	"time"
)

const (
	EventSourcePoll = "poll"
	EventSourceMQTT = "mqtt"
)

// EventsConfig selects where dispatch progress events come from.
type EventsConfig struct {
	// Source is "poll" (GET the dispatch status) or "mqtt" (pushed events).
	Source         string `json:"source"`
	PollIntervalMS int    `json:"poll_interval_ms"`
	// Buffer is the capacity of the channel feeding the tracker.
	Buffer int `json:"buffer"`
}

func (c *EventsConfig) SetDefaults() {
	if c.Source == "" {
		c.Source = EventSourcePoll
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = 1000
	}
	if c.Buffer <= 0 {
		c.Buffer = 16
	}
}

func (c EventsConfig) Validate() error {
	if c.Source != EventSourcePoll && c.Source != EventSourceMQTT {
		return fmt.Errorf("events: unknown source %q", c.Source)
	}
	return nil
}

// PollInterval returns the poll period.
func (c EventsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
