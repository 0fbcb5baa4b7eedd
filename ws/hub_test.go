package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/pulse/events"
)

func newTestClient(h *Hub, connID, userID string, buffer int) *Client {
	c := &Client{
		hub:      h,
		connID:   connID,
		userID:   userID,
		username: "user-" + userID,
		send:     make(chan []byte, buffer),
		log:      zerolog.Nop(),
	}
	c.setState(StateAuthenticated)
	return c
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Shutdown)
	return h
}

// next reads one frame from c's queue and decodes it.
func next(t *testing.T, c *Client) events.Payload {
	t.Helper()
	select {
	case frame, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		_, p, err := events.DecodeFrame(frame)
		require.NoError(t, err)
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func join(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	require.True(t, h.Register(c))
	ready, ok := next(t, c).(events.Ready)
	require.True(t, ok)
	assert.Equal(t, c.connID, ready.ConnID)
	assert.Equal(t, GroupFeed, ready.Group)
	assert.Equal(t, StateJoined, c.State())
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	h := startHub(t)
	a := newTestClient(h, "a", "u1", 8)
	b := newTestClient(h, "b", "u2", 8)
	a2 := newTestClient(h, "a2", "u1", 8) // same identity, second tab
	join(t, h, a)
	join(t, h, b)
	join(t, h, a2)

	h.Broadcast(GroupFeed, a.connID, events.PostLike{PostID: "p1", IsLiked: true, LikesCount: 4})

	assert.Equal(t, events.PostLike{PostID: "p1", IsLiked: true, LikesCount: 4}, next(t, b))
	assert.Equal(t, events.PostLike{PostID: "p1", IsLiked: true, LikesCount: 4}, next(t, a2),
		"exclusion is per connection, not per identity")
	assert.Empty(t, a.send, "sender must not receive its own echo")
}

func TestHubBroadcastExceptUser(t *testing.T) {
	h := startHub(t)
	a := newTestClient(h, "a", "u1", 8)
	a2 := newTestClient(h, "a2", "u1", 8)
	b := newTestClient(h, "b", "u2", 8)
	join(t, h, a)
	join(t, h, a2)
	join(t, h, b)

	h.BroadcastExceptUser("u1", events.UserStatus{UserID: "u1", IsOnline: true})

	assert.Equal(t, events.UserStatus{UserID: "u1", IsOnline: true}, next(t, b))
	assert.Empty(t, a.send)
	assert.Empty(t, a2.send)
}

func TestHubPresenceIndex(t *testing.T) {
	h := NewHub()

	var mu sync.Mutex
	var firsts, lasts []string
	h.OnPresenceChange(
		func(id string) { mu.Lock(); firsts = append(firsts, id); mu.Unlock() },
		func(id string) { mu.Lock(); lasts = append(lasts, id); mu.Unlock() },
	)
	go h.Run()
	defer h.Shutdown()

	a := newTestClient(h, "a", "u1", 8)
	a2 := newTestClient(h, "a2", "u1", 8)
	b := newTestClient(h, "b", "u2", 8)
	join(t, h, a)
	join(t, h, a2)
	join(t, h, b)

	assert.Equal(t, []string{"u1", "u2"}, h.OnlineUserIDs())
	assert.Equal(t, 3, h.GroupSize(GroupFeed))

	h.Unregister(a)
	assert.Eventually(t, func() bool { return h.GroupSize(GroupFeed) == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.IsOnline("u1"), "u1 still has a second connection")

	h.Unregister(a2)
	assert.Eventually(t, func() bool { return !h.IsOnline("u1") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateClosed, a2.State())

	// Unregistering twice is harmless.
	h.Unregister(a2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"u1", "u2"}, firsts)
	assert.Equal(t, []string{"u1"}, lasts)
}

func TestHubRemovedConnectionGetsNothing(t *testing.T) {
	h := startHub(t)
	a := newTestClient(h, "a", "u1", 8)
	b := newTestClient(h, "b", "u2", 8)
	join(t, h, a)
	join(t, h, b)

	h.Unregister(b)
	assert.Eventually(t, func() bool { return h.GroupSize(GroupFeed) == 1 }, time.Second, 5*time.Millisecond)

	h.Broadcast(GroupFeed, a.connID, events.PostRemoved{PostID: "p1"})

	_, open := <-b.send
	assert.False(t, open, "closed connection receives nothing further")
}

func TestHubSlowClientDoesNotStallOthers(t *testing.T) {
	h := startHub(t)
	sender := newTestClient(h, "s", "u1", 8)
	fast := newTestClient(h, "f", "u2", 64)
	slow := newTestClient(h, "slow", "u3", 1)
	join(t, h, sender)
	join(t, h, fast)
	join(t, h, slow)

	// slow never drains; its one-slot buffer fills on the first broadcast.
	for i := 0; i < 5; i++ {
		h.Broadcast(GroupFeed, sender.connID, events.PostRemoved{PostID: "p"})
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, events.PostRemoved{PostID: "p"}, next(t, fast))
	}
	assert.Eventually(t, func() bool { return h.GroupSize(GroupFeed) == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, h.IsOnline("u3"))
}

func TestHubShutdown(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := newTestClient(h, "a", "u1", 8)
	join(t, h, a)

	h.Shutdown()
	h.Shutdown()

	_, open := <-a.send
	assert.False(t, open)
	assert.Empty(t, h.OnlineUserIDs())
	assert.False(t, h.Register(newTestClient(h, "b", "u2", 8)))
}

func TestRelayMapping(t *testing.T) {
	c := &Client{userID: "u1", username: "ann"}

	tests := []struct {
		in   events.Payload
		want events.Payload
	}{
		{events.PostLiked{PostID: "p", IsLiked: true, LikesCount: 4}, events.PostLike{PostID: "p", IsLiked: true, LikesCount: 4}},
		{events.PostDeleted{PostID: "p"}, events.PostRemoved{PostID: "p"}},
		{events.CommentDeleted{PostID: "p", CommentID: "c"}, events.CommentRemoved{PostID: "p", CommentID: "c"}},
		{events.TypingStart{PostID: "p"}, events.UserTyping{UserID: "u1", Username: "ann", PostID: "p"}},
		{events.TypingStop{PostID: "p"}, events.UserTypingStop{UserID: "u1", PostID: "p"}},
	}
	for _, tt := range tests {
		got, ok := relay(c, tt.in)
		assert.True(t, ok, tt.in.Op())
		assert.Equal(t, tt.want, got)
	}

	_, ok := relay(c, events.UserStatus{UserID: "u9", IsOnline: true})
	assert.False(t, ok, "clients cannot forge server-originated ops")
	_, ok = relay(c, events.PostNew{})
	assert.False(t, ok)
}
