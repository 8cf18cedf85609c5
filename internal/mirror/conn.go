package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pressline.sync/internal/core/domain"
	"pressline.sync/internal/core/logger"
)

// heartbeatPayload is the literal keep-alive frame. The server does not
// answer it; it exists only to keep intermediaries from idling the socket.
const heartbeatPayload = "ping"

const defaultHandshakeTimeout = 10 * time.Second

type ConnConfig struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	HandshakeTimeout  time.Duration
	AutoReconnect     bool
}

// Conn owns the push channel: dialing, heartbeats, failure detection and
// fixed-interval reconnects. It is the sole owner of the ConnectionState
// value; dependents read it through State().
//
// Reconnects are unbounded at a constant interval, no backoff and no cap.
// Availability is preferred over politeness here: the backend is our own.
type Conn struct {
	cfg       ConnConfig
	dialer    *websocket.Dialer
	onMessage func([]byte)
	onState   func(domain.ConnectionState)
	log       *slog.Logger

	// State changes are delivered to onState from a single goroutine fed
	// by notify, so rapid transitions cannot arrive out of order. done
	// ends that goroutine on Disconnect, after a final delivery.
	notify chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	ws        *websocket.Conn
	state     domain.ConnectionState
	closed    bool // intentional close; checked before every re-arm
	dialing   bool
	gen       int // connection generation, invalidates stale callbacks
	lastErr   error
	reconnect *time.Timer
	hbStop    chan struct{}
}

func NewConn(cfg ConnConfig, onMessage func([]byte), onState func(domain.ConnectionState)) *Conn {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 3 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	c := &Conn{
		cfg:       cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		onMessage: onMessage,
		onState:   onState,
		state:     domain.ConnDisconnected,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		log:       logger.With("component", "conn"),
	}
	if onState != nil {
		go c.notifyLoop()
	}
	return c
}

// notifyLoop is the single delivery goroutine for state callbacks.
// Transitions are coalesced: dependents only care about the latest state,
// and delivering it from one goroutine keeps the observed order correct.
func (c *Conn) notifyLoop() {
	var last domain.ConnectionState
	deliver := func() {
		st := c.State()
		if st != last {
			last = st
			c.onState(st)
		}
	}
	for {
		select {
		case <-c.notify:
			deliver()
		case <-c.done:
			deliver()
			return
		}
	}
}

// Connect establishes one live connection. It is a no-op while a socket is
// already open, while a dial is in flight, or after Disconnect.
func (c *Conn) Connect(ctx context.Context) {
	c.connect(ctx, false)
}

func (c *Conn) connect(ctx context.Context, retry bool) {
	c.mu.Lock()
	if c.closed || c.ws != nil || c.dialing {
		c.mu.Unlock()
		return
	}
	c.dialing = true
	if retry {
		c.setStateLocked(domain.ConnReconnecting)
	} else {
		c.setStateLocked(domain.ConnConnecting)
	}
	c.mu.Unlock()

	ws, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil && resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	c.dialing = false
	if c.closed {
		c.mu.Unlock()
		if err == nil {
			ws.Close()
		}
		return
	}
	if err != nil {
		c.lastErr = err
		c.log.Warn("dial failed", "url", c.cfg.URL, "error", err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.gen++
	gen := c.gen
	c.ws = ws
	stop := make(chan struct{})
	c.hbStop = stop
	c.setStateLocked(domain.ConnConnected)
	c.mu.Unlock()

	c.log.Info("push channel connected", "url", c.cfg.URL)
	go c.readLoop(ws, gen)
	go c.heartbeatLoop(ws, stop)
}

// Disconnect marks the client intentionally closed, cancels pending timers
// and closes any open socket. Safe to call repeatedly; after it returns no
// heartbeat fires and no reconnect is scheduled.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.gen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
	ws := c.ws
	c.ws = nil
	c.setStateLocked(domain.ConnDisconnected)
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
}

// State returns the current connection health.
func (c *Conn) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent transport error, for diagnostic display.
func (c *Conn) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Conn) readLoop(ws *websocket.Conn, gen int) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.closeAndRecover(gen, err)
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

// closeAndRecover is the single recovery path: read errors surface here as
// the socket closing, and the close drives exactly one scheduled reconnect.
func (c *Conn) closeAndRecover(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen || c.ws == nil {
		// A newer connection or an intentional Disconnect already took over.
		c.mu.Unlock()
		return
	}
	c.ws.Close()
	c.ws = nil
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
	if c.closed {
		c.setStateLocked(domain.ConnDisconnected)
		c.mu.Unlock()
		return
	}
	c.lastErr = err
	c.log.Warn("push channel lost", "error", err)
	c.scheduleReconnectLocked()
	c.mu.Unlock()
}

func (c *Conn) scheduleReconnectLocked() {
	if !c.cfg.AutoReconnect {
		c.setStateLocked(domain.ConnDisconnected)
		return
	}
	c.setStateLocked(domain.ConnReconnecting)
	c.reconnect = time.AfterFunc(c.cfg.ReconnectInterval, func() {
		c.connect(context.Background(), true)
	})
}

func (c *Conn) heartbeatLoop(ws *websocket.Conn, stop chan struct{}) {
	t := time.NewTicker(c.cfg.HeartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			// A failed send means the socket is no longer open; the close
			// path drives recovery, so the miss is skipped, not escalated.
			_ = ws.WriteMessage(websocket.TextMessage, []byte(heartbeatPayload))
		}
	}
}

func (c *Conn) setStateLocked(st domain.ConnectionState) {
	if st == c.state {
		return
	}
	c.state = st
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// DeriveWSURL maps an http(s) endpoint to its websocket equivalent,
// matching the transport security of the source URL.
func DeriveWSURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
