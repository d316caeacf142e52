package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/printfleet/api"
	"github.com/kilianp07/printfleet/core/metrics"
	"github.com/kilianp07/printfleet/infra/monitoring"
	"github.com/kilianp07/printfleet/infra/mqtt"
	"github.com/kilianp07/printfleet/infra/printerapi"
)

type Config struct {
	Logging    LoggingConfig     `json:"logging"`
	PrinterAPI printerapi.Config `json:"printer_api"`
	Events     EventsConfig      `json:"events"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Matching   MatchingConfig    `json:"matching"`
	Tracker    TrackerConfig     `json:"tracker"`
	Metrics    metrics.Config    `json:"metrics"`
	Server     api.Config        `json:"server"`
	Sentry     monitoring.Config `json:"sentry"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides: K_SERVER__ADDRESS sets server.address.
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields in every section.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Events.SetDefaults()
	c.Matching.SetDefaults()
	c.Tracker.SetDefaults()
	c.Server.SetDefaults()
	if c.Events.Source == EventSourceMQTT && c.MQTT.EventsTopic == "" {
		c.MQTT.EventsTopic = mqtt.DefaultEventsTopic
	}
	if c.Metrics.PrometheusEnabled() && c.Metrics.PrometheusPort == "" {
		c.Metrics.PrometheusPort = "9091"
	}
}

// Validate reports every invalid section.
func (c Config) Validate() error {
	errs := []error{
		c.Logging.Validate(),
		c.Events.Validate(),
		c.Matching.Validate(),
		c.Tracker.Validate(),
	}
	if c.PrinterAPI.BaseURL == "" {
		errs = append(errs, errors.New("printer_api: base_url is required"))
	}
	if c.Events.Source == EventSourceMQTT && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt: broker is required when events.source is mqtt"))
	}
	return errors.Join(errs...)
}
