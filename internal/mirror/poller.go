package mirror

import (
	"context"
	"log/slog"
	"time"

	"pressline.sync/internal/core/domain"
	"pressline.sync/internal/core/logger"
	"pressline.sync/internal/core/ports"
)

const (
	defaultPollHealthy  = 30 * time.Second
	defaultPollDegraded = 10 * time.Second
	defaultPageSize     = 20
)

// Poller is the consistency backstop: a timer-driven full-state refresh
// that guarantees eventual consistency even when the push channel is
// degraded. Its cadence follows connection health: slow while the push
// channel carries the low-latency updates, faster while it does not.
type Poller struct {
	snap     ports.Snapshotter
	rec      *Reconciler
	health   func() domain.ConnectionState
	healthy  time.Duration
	degraded time.Duration
	pageSize int
	kick     chan struct{}
	log      *slog.Logger
}

func NewPoller(snap ports.Snapshotter, rec *Reconciler, health func() domain.ConnectionState, healthy, degraded time.Duration, pageSize int) *Poller {
	if healthy <= 0 {
		healthy = defaultPollHealthy
	}
	if degraded <= 0 {
		degraded = defaultPollDegraded
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Poller{
		snap:     snap,
		rec:      rec,
		health:   health,
		healthy:  healthy,
		degraded: degraded,
		pageSize: pageSize,
		kick:     make(chan struct{}, 1),
		log:      logger.With("component", "poller"),
	}
}

// Interval returns the cadence for the current connection health.
func (p *Poller) Interval() time.Duration {
	if p.health() == domain.ConnConnected {
		return p.healthy
	}
	return p.degraded
}

// Kick re-arms the timer for the current health without waiting out the
// previously armed interval. Called on connection-state transitions.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. The first fetch happens immediately.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)
	timer := time.NewTimer(p.Interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.Interval())
		case <-timer.C:
			p.poll(ctx)
			timer.Reset(p.Interval())
		}
	}
}

// poll fetches stats plus a page of the most recent jobs and feeds whatever
// succeeded to the reconciler. Failures are logged and dropped; the next
// tick retries on its own, the interval already throttles us.
func (p *Poller) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	stats, err := p.snap.FetchStats(ctx)
	if err != nil {
		p.log.Warn("stats fetch failed", "error", err)
		stats = nil
	}

	var jobs []*domain.Job
	page, err := p.snap.FetchRecentJobs(ctx, 1, p.pageSize)
	if err != nil {
		p.log.Warn("job page fetch failed", "error", err)
	} else if page != nil {
		jobs = page.Jobs
	}

	if stats == nil && jobs == nil {
		return
	}
	p.rec.ApplySnapshot(jobs, stats)
}
