package engine

import (
	"context"
	"time"

	"github.com/rmax-ai/restock/pkg/logger"
)

// DefaultPollInterval is how often pending alerts are sent and stock state
// metrics refreshed.
const DefaultPollInterval = time.Minute

// Poller periodically sends pending low-stock alerts and recomputes
// inventory-wide stock state so the metrics stay current between requests.
type Poller struct {
	inventory *Inventory
	interval  time.Duration
	log       *logger.Logger
}

// NewPoller creates a new poller instance
func NewPoller(inv *Inventory, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		inventory: inv,
		interval:  interval,
		log:       logger.Nop(),
	}
}

// SetLogger sets the poller logger.
func (p *Poller) SetLogger(l *logger.Logger) {
	if l != nil {
		p.log = l
	}
}

// Start runs the polling loop until ctx is cancelled. It polls once
// immediately.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Infow("poller_started", "interval", p.interval.String())
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Infow("poller_stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	sent, err := p.inventory.DispatchPending(ctx)
	if err != nil {
		p.log.Warnw("dispatch_failed", "error", err)
	} else if sent > 0 {
		p.log.Infow("pending_alerts_sent", "count", sent)
	}

	s, err := p.inventory.Summarize(ctx)
	if err != nil {
		p.log.Warnw("poll_failed", "error", err)
		return
	}
	p.log.Debugw("poll_completed", "total", s.Total, "low_stock", s.LowStock, "critical", s.Critical)
}
