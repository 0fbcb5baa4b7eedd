// Package ws is the push gateway.
//
// Every WebSocket connection is authenticated during the HTTP upgrade, joins
// the single broadcast group "feed", and from then on any event it sends is
// relayed to every other joined connection. The sender never receives its own
// echo.
//
// Hub owns all cross-connection state: an arena of connections keyed by
// connection ID, plus two secondary indexes (group membership and connections
// per user for presence). Connections enter and leave only through Run's
// register/unregister channels; broadcasts read the indexes under RLock. A
// broadcast therefore never iterates a set that a disconnect is modifying.
package ws

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/akinalp/pulse/events"
	"github.com/akinalp/pulse/pkg/logger"
	"github.com/akinalp/pulse/pkg/metrics"
)

// GroupFeed is the only broadcast group.
const GroupFeed = "feed"

// EventPublisher is what the service layer needs from the gateway. Services
// depend on this interface, not on *Hub.
type EventPublisher interface {
	BroadcastToAll(p events.Payload)
	BroadcastExceptUser(excludeUserID string, p events.Payload)
	OnlineUserIDs() []string
}

// Hub is the connection registry. Create it with NewHub and start Run in its
// own goroutine.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Client              // connID → connection
	groups map[string]map[string]struct{} // group → connIDs
	byUser map[string]map[string]struct{} // userID → connIDs
	closed bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	seq atomic.Int64

	// Presence hooks, called from the Run goroutine outside the lock.
	onFirstConnect      func(userID string)
	onFullyDisconnected func(userID string)

	log zerolog.Logger
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:      make(map[string]*Client),
		groups:     make(map[string]map[string]struct{}),
		byUser:     make(map[string]map[string]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logger.WithComponent("ws"),
	}
}

// OnPresenceChange installs the presence hooks. first fires when an identity
// gains its first connection, last when it loses its final one. Call before Run.
//
// Both run on the Run goroutine, so every join and leave waits for them.
// Hooks must return quickly; hand slow work such as database writes to
// another goroutine.
func (h *Hub) OnPresenceChange(first, last func(userID string)) {
	h.onFirstConnect = first
	h.onFullyDisconnected = last
}

// Run serializes joins and leaves until Shutdown.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			if h.addClient(c) && h.onFirstConnect != nil {
				h.onFirstConnect(c.userID)
			}

		case c := <-h.unregister:
			if h.removeClient(c) && h.onFullyDisconnected != nil {
				h.onFullyDisconnected(c.userID)
			}

		case <-h.done:
			return
		}
	}
}

// Register hands c to Run. It reports false if the hub is shut down.
func (h *Hub) Register(c *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister hands c to Run for removal. Unknown or already removed clients
// are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// addClient joins c to the feed group and queues its ready frame. It reports
// whether c is the user's first live connection.
//
// Ordering matters here. Broadcasts hold the read lock while they walk the
// group index, so once c is in the index under the write lock, the next
// broadcast will enqueue onto c.send. The ready frame is enqueued before the
// lock is released, which makes it the first frame in c.send. A client
// therefore always sees ready before any relayed event, and it can treat
// ready as "joined" without a separate acknowledgement.
//
// If the hub is already shut down, c.send is closed right away; its write
// pump sends a close frame and the connection never joins.
func (h *Hub) addClient(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(c.send)
		c.setState(StateClosed)
		return false
	}

	// first is computed before c is indexed: it is true only if this user had
	// no joined connection a moment ago.
	h.conns[c.connID] = c
	addIndex(h.groups, GroupFeed, c.connID)
	first := len(h.byUser[c.userID]) == 0
	addIndex(h.byUser, c.userID, c.connID)
	c.setState(StateJoined)

	// The ready frame is queued while the lock is held, so no broadcast can
	// reach c before it learns it has joined.
	c.enqueue(h.encode(events.Ready{ConnID: c.connID, UserID: c.userID, Username: c.username, Group: GroupFeed}))

	metrics.GatewayConnections.Set(float64(len(h.conns)))
	metrics.OnlineUsers.Set(float64(len(h.byUser)))
	c.log.Info().Int("user_connections", len(h.byUser[c.userID])).Msg("connection joined")
	return first
}

// removeClient drops c from every index and closes its send channel. It
// reports whether the user has no connection left.
func (h *Hub) removeClient(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.conns[c.connID]; !ok || cur != c {
		return false
	}

	delete(h.conns, c.connID)
	removeIndex(h.groups, GroupFeed, c.connID)
	removeIndex(h.byUser, c.userID, c.connID)
	close(c.send)
	c.setState(StateClosed)

	metrics.GatewayConnections.Set(float64(len(h.conns)))
	metrics.OnlineUsers.Set(float64(len(h.byUser)))

	last := len(h.byUser[c.userID]) == 0
	c.log.Info().Bool("user_offline", last).Msg("connection closed")
	return last
}

// Broadcast delivers p to every member of group except excludeConnID.
// Delivery is non-blocking per connection: a member whose buffer is full is
// disconnected instead of stalling everyone else.
func (h *Hub) Broadcast(group, excludeConnID string, p events.Payload) {
	data := h.encode(p)
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID := range h.groups[group] {
		if connID == excludeConnID {
			continue
		}
		h.deliver(h.conns[connID], data)
	}
	metrics.EventsRelayed.WithLabelValues(p.Op()).Inc()
}

// BroadcastToAll delivers p to every joined connection.
func (h *Hub) BroadcastToAll(p events.Payload) {
	h.Broadcast(GroupFeed, "", p)
}

// BroadcastExceptUser delivers p to every joined connection not owned by
// excludeUserID.
func (h *Hub) BroadcastExceptUser(excludeUserID string, p events.Payload) {
	data := h.encode(p)
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID := range h.groups[GroupFeed] {
		c := h.conns[connID]
		if c.userID == excludeUserID {
			continue
		}
		h.deliver(c, data)
	}
	metrics.EventsRelayed.WithLabelValues(p.Op()).Inc()
}

// deliver must be called with h.mu held (read or write).
//
// A full buffer means the client's write pump is behind. Unregister is
// handed to a goroutine because it needs the write lock, which cannot be
// taken while this broadcast holds the read lock. Until Run removes the
// client, further frames for it are dropped by enqueue.
func (h *Hub) deliver(c *Client, data []byte) {
	if c == nil {
		return
	}
	if !c.enqueue(data) {
		metrics.DeliveriesDropped.WithLabelValues("slow_client").Inc()
		c.log.Warn().Msg("send buffer full, disconnecting slow client")
		go h.Unregister(c)
	}
}

func (h *Hub) encode(p events.Payload) []byte {
	data, err := events.Encode(p, h.seq.Add(1))
	if err != nil {
		h.log.Error().Err(err).Str("op", p.Op()).Msg("failed to encode event")
		return nil
	}
	return data
}

// OnlineUserIDs returns every identity with at least one joined connection,
// sorted.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.byUser))
	for userID := range h.byUser {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

// IsOnline reports whether userID has a joined connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// GroupSize returns the number of joined connections in group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Shutdown stops Run and closes every connection's send channel, which makes
// each write pump send a close frame. Safe to call more than once.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()

		h.closed = true
		for _, c := range h.conns {
			close(c.send)
			c.setState(StateClosed)
		}
		h.conns = make(map[string]*Client)
		h.groups = make(map[string]map[string]struct{})
		h.byUser = make(map[string]map[string]struct{})

		metrics.GatewayConnections.Set(0)
		metrics.OnlineUsers.Set(0)
		h.log.Info().Msg("hub shut down, all connections closed")
	})
}

func addIndex(idx map[string]map[string]struct{}, key, connID string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[connID] = struct{}{}
}

func removeIndex(idx map[string]map[string]struct{}, key, connID string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(idx, key)
	}
}

// sendTo delivers p to one connection if it is still joined.
func (h *Hub) sendTo(c *Client, p events.Payload) {
	data := h.encode(p)
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.conns[c.connID] == c {
		h.deliver(c, data)
	}
}
