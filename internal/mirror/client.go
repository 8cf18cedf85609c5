// Package mirror keeps a locally-consistent view of the backend's job queue
// under two concurrent update sources: an incremental websocket push stream
// and periodic full-state REST polling. The reconciler is the single writer
// over the mirrored state; the connection manager and the polling fallback
// only feed it.
package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pressline.sync/internal/core/domain"
	"pressline.sync/internal/core/logger"
	"pressline.sync/internal/core/ports"
)

// Observer receives instrumentation callbacks. All fields are optional.
type Observer struct {
	FrameDecoded func()
	FrameDropped func()
	StateChanged func(domain.ConnectionState)
}

type Config struct {
	WSURL string

	HeartbeatInterval time.Duration // default 30s
	ReconnectInterval time.Duration // default 3s
	// DisableAutoReconnect leaves a lost push channel down; polling alone
	// keeps the mirror converging.
	DisableAutoReconnect bool

	PollHealthy  time.Duration // default 30s
	PollDegraded time.Duration // default 10s
	PageSize     int           // default 20

	WindowSize int // default 50
	RecentJobs int // default 5

	Observer Observer
}

// Client is the facade over connection manager, decoder, reconciler and
// polling fallback.
type Client struct {
	cfg    Config
	conn   *Conn
	rec    *Reconciler
	poller *Poller
	log    *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

func New(cfg Config, snap ports.Snapshotter) *Client {
	c := &Client{
		cfg: cfg,
		rec: NewReconciler(cfg.WindowSize, cfg.RecentJobs),
		log: logger.With("component", "mirror"),
	}
	c.conn = NewConn(ConnConfig{
		URL:               cfg.WSURL,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectInterval: cfg.ReconnectInterval,
		AutoReconnect:     !cfg.DisableAutoReconnect,
	}, c.handleFrame, c.handleState)
	c.poller = NewPoller(snap, c.rec, c.conn.State, cfg.PollHealthy, cfg.PollDegraded, cfg.PageSize)
	return c
}

// Start connects the push channel and starts the polling fallback. Calling
// it twice is a no-op.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.poller.Run(runCtx)
	go c.conn.Connect(runCtx)
}

// Stop tears the client down: the poll loop exits and the push channel is
// intentionally closed, so no heartbeat or reconnect fires afterwards.
// An in-flight poll fetch may still resolve and apply one last snapshot,
// which is harmless idempotent state replacement.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.conn.Disconnect()
}

func (c *Client) handleFrame(data []byte) {
	ev, err := DecodeEvent(data)
	if err != nil {
		// Malformed frames are dropped; the connection stays open.
		c.log.Warn("dropping undecodable frame", "error", err)
		if c.cfg.Observer.FrameDropped != nil {
			c.cfg.Observer.FrameDropped()
		}
		return
	}
	if c.cfg.Observer.FrameDecoded != nil {
		c.cfg.Observer.FrameDecoded()
	}
	c.rec.ApplyEvent(ev)
}

func (c *Client) handleState(st domain.ConnectionState) {
	c.poller.Kick()
	if c.cfg.Observer.StateChanged != nil {
		c.cfg.Observer.StateChanged(st)
	}
}

// Jobs returns the bounded reconciled job window, most recent first.
func (c *Client) Jobs() []*domain.Job { return c.rec.Jobs() }

// Recent returns the recent-jobs projection used for dashboard summaries.
func (c *Client) Recent() []*domain.Job { return c.rec.Recent() }

// Stats returns the latest server-reported aggregate counts.
func (c *Client) Stats() *domain.QueueStats { return c.rec.Stats() }

// ConnectionState returns the push channel's current health.
func (c *Client) ConnectionState() domain.ConnectionState { return c.conn.State() }

// LastError returns the last transport error, for diagnostic display.
func (c *Client) LastError() error { return c.conn.LastError() }

// Updates returns a channel receiving every reconciled update.
func (c *Client) Updates() <-chan Update { return c.rec.Subscribe() }
