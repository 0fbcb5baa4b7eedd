package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/akinalp/pulse/events"
	"github.com/akinalp/pulse/pkg/metrics"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent. Any frame, pong or
	// heartbeat extends it.
	pongWait = 90 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = 30 * time.Second

	// maxMessageSize caps inbound frames. Events are small; content travels
	// over HTTP and the event only echoes the server's projection.
	maxMessageSize = 16 * 1024

	// DefaultSendBuffer is the per-connection outbound queue length.
	DefaultSendBuffer = 256
)

// ConnState is the lifecycle of a gateway connection:
// handshaking → authenticated → joined → closed.
type ConnState int32

const (
	StateHandshaking ConnState = iota
	StateAuthenticated
	StateJoined
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one authenticated WebSocket connection. It runs two goroutines:
// ReadPump decodes inbound frames and relays them, WritePump drains send.
// gorilla/websocket allows one concurrent reader and one concurrent writer,
// which this split respects.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	connID   string
	userID   string
	username string

	// send is closed by the hub, never by the client.
	send  chan []byte
	state atomic.Int32
	mu    sync.Mutex // serializes conn writes

	log zerolog.Logger
}

// ConnID returns the connection's arena key.
func (c *Client) ConnID() string { return c.connID }

// UserID returns the identity that owns the connection.
func (c *Client) UserID() string { return c.userID }

// State returns the current lifecycle state.
func (c *Client) State() ConnState { return ConnState(c.state.Load()) }

func (c *Client) setState(s ConnState) { c.state.Store(int32(s)) }

// enqueue must be called with the hub lock held so send cannot be closed
// underneath it. It reports false when the buffer is full.
func (c *Client) enqueue(data []byte) bool {
	if data == nil {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump reads frames until the connection fails, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	if err := extend(); err != nil {
		c.log.Warn().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("unexpected close")
			}
			return
		}
		if err := extend(); err != nil {
			return
		}

		env, p, err := events.DecodeFrame(frame)
		if err != nil {
			metrics.DeliveriesDropped.WithLabelValues("malformed").Inc()
			c.log.Debug().Err(err).Str("op", env.Op).Msg("ignoring inbound frame")
			continue
		}
		c.handle(p)
	}
}

// handle reacts to one decoded inbound event.
func (c *Client) handle(p events.Payload) {
	if _, ok := p.(events.Heartbeat); ok {
		c.hub.sendTo(c, events.HeartbeatAck{})
		return
	}

	out, ok := relay(c, p)
	if !ok {
		metrics.DeliveriesDropped.WithLabelValues("not_relayable").Inc()
		c.log.Debug().Str("op", p.Op()).Msg("client sent a server-only op")
		return
	}
	c.hub.Broadcast(GroupFeed, c.connID, out)
}

// WritePump drains send and pings on idle. It exits when the hub closes send
// or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
