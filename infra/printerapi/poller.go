package printerapi

import (
	"context"
	"time"

	"github.com/kilianp07/printfleet/core/fleet"
	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/infra/logger"
)

const defaultPollInterval = time.Second

// StatusFetcher returns the current background dispatch progress.
type StatusFetcher interface {
	DispatchStatus(ctx context.Context) (model.DispatchEvent, error)
}

var _ fleet.EventSource = (*Poller)(nil)

// Poller polls the dispatch status endpoint at a fixed cadence.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	log      logger.Logger
}

// NewPoller returns a poller. A non-positive interval uses one second.
func NewPoller(fetcher StatusFetcher, interval time.Duration, log logger.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{fetcher: fetcher, interval: interval, log: logger.OrNop(log)}
}

// Run fetches immediately, then once per interval, and forwards every
// successful snapshot to out. Failed polls are logged and skipped.
func (p *Poller) Run(ctx context.Context, out chan<- model.DispatchEvent) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if ev, err := p.fetcher.DispatchStatus(ctx); err != nil {
			if ctx.Err() == nil {
				p.log.Warnf("dispatch status poll failed: %v", err)
			}
		} else {
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
