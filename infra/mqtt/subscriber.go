package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/infra/logger"
)

// DefaultEventsTopic is where the dispatch service publishes progress.
const DefaultEventsTopic = "printfleet/dispatch/events"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	EventsTopic string      `json:"events_topic"`
	QoS         byte        `json:"qos"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	TLSConfig   *tls.Config `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// EventSubscriber receives dispatch progress events pushed over MQTT.
type EventSubscriber struct {
	cfg  Config
	log  logger.Logger
	cli  pahoClient
	out  chan<- model.DispatchEvent
	done chan struct{}
	once sync.Once
}

// NewEventSubscriber validates cfg. The broker connection is opened by Run.
func NewEventSubscriber(cfg Config, log logger.Logger) (*EventSubscriber, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	if cfg.EventsTopic == "" {
		cfg.EventsTopic = DefaultEventsTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "printfleet-" + uuid.NewString()
	}
	if log == nil {
		log = logger.New("mqtt_events")
	}
	return &EventSubscriber{cfg: cfg, log: log, done: make(chan struct{})}, nil
}

// Run connects, subscribes to the events topic and forwards each decoded
// event to out until ctx is done. The subscription is renewed on reconnect.
func (s *EventSubscriber) Run(ctx context.Context, out chan<- model.DispatchEvent) error {
	opts, err := NewClientOptions(s.cfg)
	if err != nil {
		return err
	}
	s.out = out
	opts.OnConnect = func(c paho.Client) {
		s.log.Infof("MQTT connected, subscribing to %s", s.cfg.EventsTopic)
		if token := c.Subscribe(s.cfg.EventsTopic, s.cfg.QoS, s.onMessage); token.Wait() && token.Error() != nil {
			s.log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		s.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		s.log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	s.cli = c
	<-ctx.Done()
	s.Close()
	return nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetOrderMatters(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// onMessage decodes one event and forwards it. Paho delivers messages of a
// subscription sequentially, so arrival order is preserved.
func (s *EventSubscriber) onMessage(_ paho.Client, msg paho.Message) {
	var ev model.DispatchEvent
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		s.log.Errorf("failed to decode dispatch event: %v", err)
		return
	}
	select {
	case s.out <- ev:
	case <-s.done:
	}
}

// Close disconnects from the broker and stops forwarding.
func (s *EventSubscriber) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.cli != nil && s.cli.IsConnected() {
			s.cli.Disconnect(250)
		}
	})
}
