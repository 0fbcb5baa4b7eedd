package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/akinalp/pulse/events"
	"github.com/akinalp/pulse/pkg"
	"github.com/akinalp/pulse/pkg/logger"
)

// Reconnect policy: fixed delay, bounded attempts.
const (
	DefaultRetryDelay  = time.Second
	DefaultMaxAttempts = 5
)

const (
	heartbeatInterval = 30 * time.Second
	readWait          = 90 * time.Second
	writeWait         = 10 * time.Second
	readyWait         = 10 * time.Second
	dispatchBuffer    = 256
)

// State is the channel's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives one decoded event.
type Handler func(events.Payload)

// Subscription is the handle returned by Subscribe. Pass it to Unsubscribe.
type Subscription struct {
	op string
	id uint64
	fn Handler
}

// ChannelOptions configures a Channel. Zero values take the defaults.
type ChannelOptions struct {
	URL               string // ws://host:port/ws
	Dialer            *websocket.Dialer
	RetryDelay        time.Duration
	MaxAttempts       int
	HeartbeatInterval time.Duration
}

// Channel is the client end of the push gateway: at most one connection at a
// time, named-event subscriptions, and best-effort emit.
//
// Every handler runs on a single dispatcher goroutine, one at a time, in the
// order frames arrived. Handlers therefore never overlap with each other,
// across reconnects included.
type Channel struct {
	url         string
	dialer      *websocket.Dialer
	retryDelay  time.Duration
	maxAttempts int
	heartbeat   time.Duration

	connectMu sync.Mutex // serializes connect attempts

	mu              sync.Mutex
	conn            *websocket.Conn
	token           string // kept for reconnects; "" after Disconnect
	ready           events.Ready
	cancelReconnect context.CancelFunc
	state           atomic.Int32

	writeMu sync.Mutex

	subsMu  sync.RWMutex
	subs    map[string][]*Subscription
	nextSub uint64

	queue    chan events.Payload
	stop     chan struct{}
	stopOnce sync.Once

	log zerolog.Logger
}

// NewChannel builds a disconnected channel and starts its dispatcher. Call
// Close when done with it.
func NewChannel(opts ChannelOptions) *Channel {
	c := &Channel{
		url:         opts.URL,
		dialer:      opts.Dialer,
		retryDelay:  opts.RetryDelay,
		maxAttempts: opts.MaxAttempts,
		heartbeat:   opts.HeartbeatInterval,
		subs:        make(map[string][]*Subscription),
		queue:       make(chan events.Payload, dispatchBuffer),
		stop:        make(chan struct{}),
		log:         logger.WithComponent("channel"),
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.heartbeat <= 0 {
		c.heartbeat = heartbeatInterval
	}

	go c.dispatch()
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

func (c *Channel) setState(s State) {
	c.state.Store(int32(s))
}

// Ready returns the gateway's ready frame for the live connection.
func (c *Channel) Ready() (events.Ready, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready, c.conn != nil
}

// Connect opens the connection with token. If already connected it returns
// nil and leaves the existing connection untouched.
//
// Failed attempts are retried after a fixed delay, up to the attempt cap. A
// rejected credential is not retried. On failure the channel stays
// disconnected and the caller must call Connect again.
func (c *Channel) Connect(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: credential required", pkg.ErrUnauthorized)
	}

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.State() == StateConnected {
		return nil
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return c.connectLoop(ctx, token)
}

func (c *Channel) connectLoop(ctx context.Context, token string) error {
	c.setState(StateConnecting)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		conn, ready, err := c.dial(ctx, token)
		if err == nil {
			if c.install(conn, ready, token) {
				return nil
			}
			// Disconnect won the race.
			conn.Close()
			c.setState(StateDisconnected)
			return fmt.Errorf("%w: disconnected while connecting", pkg.ErrTransport)
		}
		if errors.Is(err, pkg.ErrUnauthorized) {
			c.setState(StateDisconnected)
			return err
		}

		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("connect failed")
		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	c.setState(StateDisconnected)
	return fmt.Errorf("%w: gave up after %d attempts: %v", pkg.ErrTransport, c.maxAttempts, lastErr)
}

// dial performs the handshake and waits for the ready frame.
func (c *Channel) dial(ctx context.Context, token string) (*websocket.Conn, events.Ready, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, events.Ready{}, fmt.Errorf("%w: handshake rejected", pkg.ErrUnauthorized)
		}
		return nil, events.Ready{}, err
	}

	conn.SetReadDeadline(time.Now().Add(readyWait))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, events.Ready{}, fmt.Errorf("read ready frame: %w", err)
	}

	_, p, err := events.DecodeFrame(frame)
	ready, ok := p.(events.Ready)
	if err != nil || !ok {
		conn.Close()
		return nil, events.Ready{}, fmt.Errorf("expected ready frame, got %q", frame)
	}
	return conn, ready, nil
}

// install makes conn the live connection unless the credential it was opened
// with has since been dropped by Disconnect.
//
// Connect dials without holding c.mu, so Disconnect (or a Logout followed by
// a Login as someone else) can run while the handshake is in flight.
// Disconnect clears c.token under c.mu, and Connect stores the new token
// there, so comparing tokens here tells whether this dial is still wanted.
// A stale dial returns false and the caller closes the socket; it never
// becomes c.conn, so no frame from the old identity reaches the handlers.
//
// The ready frame is enqueued before the read loop starts. Subscribers see
// ready first, then relayed events in the order the gateway sent them.
func (c *Channel) install(conn *websocket.Conn, ready events.Ready, token string) bool {
	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.ready = ready
	c.mu.Unlock()

	c.setState(StateConnected)
	c.log.Info().Str("conn_id", ready.ConnID).Msg("connected")

	done := make(chan struct{})
	c.enqueue(ready)
	go c.readLoop(conn, done)
	go c.heartbeatLoop(conn, done)
	return true
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.dropped(conn, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		_, p, err := events.DecodeFrame(frame)
		if err != nil {
			c.log.Debug().Err(err).Msg("dropping frame")
			continue
		}
		c.enqueue(p)
	}
}

func (c *Channel) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.write(conn, events.Heartbeat{})
		case <-done:
			return
		}
	}
}

// dropped handles the end of a connection this side did not ask for, and
// re-enters the connect loop with the same policy.
func (c *Channel) dropped(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	token := c.token
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelReconnect = cancel
	c.mu.Unlock()

	conn.Close()
	c.setState(StateDisconnected)
	c.log.Warn().Err(cause).Msg("connection lost")

	if token == "" {
		cancel()
		return
	}
	go c.reconnect(ctx, cancel, token)
}

func (c *Channel) reconnect(ctx context.Context, cancel context.CancelFunc, token string) {
	defer cancel()

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if ctx.Err() != nil || c.State() == StateConnected {
		return
	}
	if err := c.connectLoop(ctx, token); err != nil {
		c.log.Warn().Err(err).Msg("reconnect failed")
	}
}

// Disconnect closes the connection and forgets it. Safe to call repeatedly
// and while disconnected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.token = ""
	c.ready = events.Ready{}
	cancel := c.cancelReconnect
	c.cancelReconnect = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}
	c.setState(StateDisconnected)
}

// Close disconnects and stops the dispatcher. The channel is unusable after.
func (c *Channel) Close() {
	c.Disconnect()
	c.stopOnce.Do(func() { close(c.stop) })
}

// Emit sends p if connected. While disconnected it does nothing: there is no
// queue and no error.
func (c *Channel) Emit(p events.Payload) {
	if c.State() != StateConnected {
		return
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.write(conn, p)
}

func (c *Channel) write(conn *websocket.Conn, p events.Payload) {
	frame, err := events.Encode(p, 0)
	if err != nil {
		c.log.Error().Err(err).Str("op", p.Op()).Msg("encode failed")
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		// The read loop sees the closed conn and takes the reconnect path.
		c.log.Debug().Err(err).Str("op", p.Op()).Msg("write failed")
		conn.Close()
	}
}

// Subscribe registers fn for op. The same fn may be registered more than once;
// each registration has its own Subscription.
func (c *Channel) Subscribe(op string, fn Handler) *Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	c.nextSub++
	sub := &Subscription{op: op, id: c.nextSub, fn: fn}
	c.subs[op] = append(c.subs[op], sub)
	return sub
}

// Unsubscribe removes sub. Unknown or already removed subscriptions are ignored.
func (c *Channel) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	list := c.subs[sub.op]
	for i, s := range list {
		if s.id == sub.id {
			c.subs[sub.op] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(c.subs[sub.op]) == 0 {
		delete(c.subs, sub.op)
	}
}

// On subscribes fn to the op of T, receiving the typed payload.
//
//	client.On(ch, func(e events.PostLike) { ... })
func On[T events.Payload](c *Channel, fn func(T)) *Subscription {
	var zero T
	return c.Subscribe(zero.Op(), func(p events.Payload) {
		if v, ok := p.(T); ok {
			fn(v)
		}
	})
}

func (c *Channel) enqueue(p events.Payload) {
	select {
	case c.queue <- p:
	case <-c.stop:
	}
}

func (c *Channel) dispatch() {
	for {
		select {
		case p := <-c.queue:
			c.deliver(p)
		case <-c.stop:
			return
		}
	}
}

func (c *Channel) deliver(p events.Payload) {
	c.subsMu.RLock()
	subs := append([]*Subscription(nil), c.subs[p.Op()]...)
	c.subsMu.RUnlock()

	for _, s := range subs {
		c.invoke(s, p)
	}
}

func (c *Channel) invoke(s *Subscription, p events.Payload) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("op", p.Op()).Msg("handler panicked")
		}
	}()
	s.fn(p)
}
