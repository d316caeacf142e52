package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kilianp07/printfleet/api"
	dispatchapi "github.com/kilianp07/printfleet/api/dispatch"
	printersapi "github.com/kilianp07/printfleet/api/printers"
	"github.com/kilianp07/printfleet/config"
	"github.com/kilianp07/printfleet/core/fleet"
	"github.com/kilianp07/printfleet/core/mapping"
	"github.com/kilianp07/printfleet/core/matcher"
	coremetrics "github.com/kilianp07/printfleet/core/metrics"
	"github.com/kilianp07/printfleet/core/model"
	coremon "github.com/kilianp07/printfleet/core/monitoring"
	"github.com/kilianp07/printfleet/core/notify"
	"github.com/kilianp07/printfleet/core/planner"
	"github.com/kilianp07/printfleet/core/tracker"
	"github.com/kilianp07/printfleet/core/tracker/history"
	"github.com/kilianp07/printfleet/infra/logger"
	"github.com/kilianp07/printfleet/infra/metrics"
	"github.com/kilianp07/printfleet/infra/monitoring"
	"github.com/kilianp07/printfleet/infra/mqtt"
	"github.com/kilianp07/printfleet/infra/printerapi"
	"github.com/kilianp07/printfleet/internal/eventbus"
)

// Service wires the backend client, the event source, the tracker, the
// planner session and the HTTP API.
type Service struct {
	Client  *printerapi.Client
	Tracker *tracker.Tracker
	Session *planner.Session
	Bus     *eventbus.TypedBus[notify.Notification]

	cfg      *config.Config
	log      logger.Logger
	logFile  io.Closer
	notifier notify.Notifier
	sink     coremetrics.MetricsSink
	history  history.Store
	source   fleet.EventSource
	matcher  matcher.Matcher
	server   *api.Server
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.ParsedLevel())
	logFile, err := logger.SetFileOutput(cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	client, err := printerapi.NewClient(cfg.PrinterAPI, logger.New("printer_api"))
	if err != nil {
		return nil, fmt.Errorf("printer api: %w", err)
	}
	source, err := newEventSource(cfg, client)
	if err != nil {
		return nil, fmt.Errorf("event source: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := history.New(cfg.Tracker.History)
	if err != nil {
		coremetrics.Close(sink)
		return nil, fmt.Errorf("history store: %w", err)
	}

	bus := eventbus.NewTyped[notify.Notification]()
	notifier := notify.Multi{notify.NewBusNotifier(bus), notify.LogNotifier{Log: logger.New("notify")}}

	tr := tracker.New(client, notifier, sink, logger.New("tracker"), cfg.Tracker.Tracker())
	tr.SetHistoryStore(store)

	svc := &Service{
		Client:   client,
		Tracker:  tr,
		Bus:      bus,
		cfg:      cfg,
		log:      logg,
		logFile:  logFile,
		notifier: notifier,
		sink:     sink,
		history:  store,
		source:   source,
		matcher:  matcher.New(cfg.Matching.SimilarityThreshold),
	}
	svc.Session = planner.NewSession(svc.OpenPlanner)
	svc.server = api.NewServer(cfg.Server, logger.New("http"),
		dispatchapi.NewServer(tr),
		printersapi.NewServer(svc.Session, client, client),
	)
	return svc, nil
}

func newEventSource(cfg *config.Config, client *printerapi.Client) (fleet.EventSource, error) {
	switch cfg.Events.Source {
	case config.EventSourceMQTT:
		return mqtt.NewEventSubscriber(cfg.MQTT, logger.New("mqtt_events"))
	case config.EventSourcePoll, "":
		return printerapi.NewPoller(client, cfg.Events.PollInterval(), logger.New("dispatch_poller")), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Events.Source)
	}
}

// OpenPlanner fetches the job requirements of fileID and builds a planner
// with an empty mapping store.
func (s *Service) OpenPlanner(ctx context.Context, fileID int) (*planner.Planner, error) {
	job, err := s.Client.PrintJob(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("load print job %d: %w", fileID, err)
	}
	p, err := planner.New(job, s.matcher, planner.Deps{
		Inventory: s.Client,
		Refresher: s.Client,
		Catalog:   s.Client,
		Store:     mapping.NewMemoryStore(),
		Notifier:  s.notifier,
		Log:       logger.New("planner"),
		Metrics:   s.sink,
	})
	if err != nil {
		return nil, err
	}
	p.SetSettleDelay(s.cfg.PrinterAPI.RefreshDelay())
	s.log.Infof("configuration session opened for %q (%d filaments)", job.Name, len(job.Requirements))
	return p, nil
}

// Handler returns the HTTP API handler.
func (s *Service) Handler() http.Handler { return s.server.Handler() }

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan model.DispatchEvent, s.cfg.Events.Buffer)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer coremon.Recover()
		s.Tracker.Run(ctx, events)
	}()
	go func() {
		defer wg.Done()
		defer coremon.Recover()
		if err := s.source.Run(ctx, events); err != nil {
			s.log.Errorf("event source: %v", err)
			coremon.CaptureException(err, map[string]string{"component": "events", "source": s.cfg.Events.Source})
		}
	}()
	metrics.StartNotificationCollector(ctx, s.Bus, s.sink)
	if s.cfg.Metrics.PrometheusEnabled() {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.cfg.Metrics.PrometheusPort, logger.New("metrics")); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	err := s.server.Run(ctx)
	cancel()
	wg.Wait()
	s.Tracker.Wait()
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Session.Close()
	s.Bus.Close()
	coremetrics.Close(s.sink)
	coremon.Flush(2 * time.Second)
	err := s.history.Close()
	if cerr := s.logFile.Close(); err == nil {
		err = cerr
	}
	return err
}
