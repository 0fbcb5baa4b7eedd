package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/pulse/events"
	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
	"github.com/akinalp/pulse/ws"
)

// tokenValidator accepts "tok-<userID>".
type tokenValidator struct{}

func (tokenValidator) ValidateAccessToken(token string) (*models.TokenClaims, error) {
	id, ok := strings.CutPrefix(token, "tok-")
	if !ok || id == "" {
		return nil, pkg.ErrUnauthorized
	}
	return &models.TokenClaims{UserID: id, Username: "user-" + id}, nil
}

func startGateway(t *testing.T) (string, *ws.Hub) {
	t.Helper()
	hub := ws.NewHub()
	go hub.Run()

	h := ws.NewHandler(hub, tokenValidator{}, 64)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func newTestChannel(t *testing.T, url string, retry time.Duration) *Channel {
	t.Helper()
	ch := NewChannel(ChannelOptions{URL: url, RetryDelay: retry, MaxAttempts: 3})
	t.Cleanup(ch.Close)
	return ch
}

func collect[T events.Payload](ch *Channel) <-chan T {
	out := make(chan T, 64)
	On(ch, func(e T) { out <- e })
	return out
}

func recv[T any](t *testing.T, c <-chan T) T {
	t.Helper()
	select {
	case v := <-c:
		return v
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatalf("timed out waiting for %T", zero)
		return zero
	}
}

func TestConnectRequiresCredential(t *testing.T) {
	url, _ := startGateway(t)
	ch := newTestChannel(t, url, 10*time.Millisecond)

	err := ch.Connect(context.Background(), "")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestConnectRejectedIsNotRetried(t *testing.T) {
	url, hub := startGateway(t)
	ch := newTestChannel(t, url, time.Second)

	start := time.Now()
	err := ch.Connect(context.Background(), "expired")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StateDisconnected, ch.State())
	assert.Zero(t, hub.GroupSize(ws.GroupFeed))
}

func TestConnectGivesUp(t *testing.T) {
	ch := newTestChannel(t, "ws://127.0.0.1:1/ws", 10*time.Millisecond)

	err := ch.Connect(context.Background(), "tok-a")
	assert.ErrorIs(t, err, pkg.ErrTransport)
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestConnectIsIdempotent(t *testing.T) {
	url, hub := startGateway(t)
	ch := newTestChannel(t, url, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, ch.Connect(ctx, "tok-a"))
	first, ok := ch.Ready()
	require.True(t, ok)
	assert.Equal(t, "a", first.UserID)

	require.NoError(t, ch.Connect(ctx, "tok-a"))
	second, _ := ch.Ready()
	assert.Equal(t, first.ConnID, second.ConnID)
	assert.Equal(t, 1, hub.GroupSize(ws.GroupFeed))

	ch.Disconnect()
	ch.Disconnect()
	assert.Equal(t, StateDisconnected, ch.State())
	require.Eventually(t, func() bool { return hub.GroupSize(ws.GroupFeed) == 0 }, 2*time.Second, 10*time.Millisecond)

	// A fresh connect after disconnect gets a fresh connection.
	require.NoError(t, ch.Connect(ctx, "tok-a"))
	third, _ := ch.Ready()
	assert.NotEqual(t, first.ConnID, third.ConnID)
}

func TestRelayWithoutEcho(t *testing.T) {
	url, _ := startGateway(t)
	a := newTestChannel(t, url, 10*time.Millisecond)
	b := newTestChannel(t, url, 10*time.Millisecond)
	ctx := context.Background()

	aLikes := collect[events.PostLike](a)
	bLikes := collect[events.PostLike](b)
	bTyping := collect[events.UserTyping](b)

	require.NoError(t, a.Connect(ctx, "tok-a"))
	require.NoError(t, b.Connect(ctx, "tok-b"))

	a.Emit(events.PostLiked{PostID: "p1", IsLiked: true, LikesCount: 4})
	got := recv(t, bLikes)
	assert.Equal(t, events.PostLike{PostID: "p1", IsLiked: true, LikesCount: 4}, got)

	a.Emit(events.TypingStart{PostID: "p1"})
	typing := recv(t, bTyping)
	assert.Equal(t, events.UserTyping{UserID: "a", Username: "user-a", PostID: "p1"}, typing)

	// If a had received its own p1, it would arrive before p2.
	b.Emit(events.PostLiked{PostID: "p2", LikesCount: 1})
	assert.Equal(t, "p2", recv(t, aLikes).PostID)
}

func TestEmitWhileDisconnectedIsNoop(t *testing.T) {
	url, _ := startGateway(t)
	a := newTestChannel(t, url, 10*time.Millisecond)
	b := newTestChannel(t, url, 10*time.Millisecond)
	bLikes := collect[events.PostLike](b)
	require.NoError(t, b.Connect(context.Background(), "tok-b"))

	assert.NotPanics(t, func() {
		a.Emit(events.PostLiked{PostID: "p1"})
	})
	assert.Equal(t, StateDisconnected, a.State())

	select {
	case e := <-bLikes:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandlersRunSeriallyInOrder(t *testing.T) {
	url, _ := startGateway(t)
	a := newTestChannel(t, url, 10*time.Millisecond)
	b := newTestChannel(t, url, 10*time.Millisecond)
	ctx := context.Background()

	var running, overlap atomic.Int32
	seen := make(chan int, 64)
	handler := func(e events.PostLike) {
		if running.Add(1) > 1 {
			overlap.Add(1)
		}
		time.Sleep(time.Millisecond)
		seen <- e.LikesCount
		running.Add(-1)
	}
	On(b, handler)
	On(b, handler)

	require.NoError(t, a.Connect(ctx, "tok-a"))
	require.NoError(t, b.Connect(ctx, "tok-b"))

	const n = 10
	for i := range n {
		a.Emit(events.PostLiked{PostID: "p", LikesCount: i})
	}
	for i := range n {
		assert.Equal(t, i, recv(t, seen))
		assert.Equal(t, i, recv(t, seen))
	}
	assert.Zero(t, overlap.Load())
}

func TestUnsubscribe(t *testing.T) {
	url, _ := startGateway(t)
	a := newTestChannel(t, url, 10*time.Millisecond)
	b := newTestChannel(t, url, 10*time.Millisecond)
	ctx := context.Background()

	var calls atomic.Int32
	sub := On(b, func(events.PostRemoved) { calls.Add(1) })
	removed := collect[events.PostRemoved](b)

	require.NoError(t, a.Connect(ctx, "tok-a"))
	require.NoError(t, b.Connect(ctx, "tok-b"))

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	a.Emit(events.PostDeleted{PostID: "p1"})
	recv(t, removed)
	assert.Zero(t, calls.Load())
}

func TestReconnectAfterDrop(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := conns.Add(1)
		frame, _ := events.Encode(events.Ready{ConnID: fmt.Sprintf("c%d", n), UserID: "a", Group: "feed"}, 0)
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil || n == 1 {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ch := newTestChannel(t, "ws"+strings.TrimPrefix(srv.URL, "http"), 10*time.Millisecond)
	readies := collect[events.Ready](ch)

	require.NoError(t, ch.Connect(context.Background(), "tok-a"))
	assert.Equal(t, "c1", recv(t, readies).ConnID)
	assert.Equal(t, "c2", recv(t, readies).ConnID)
	require.Eventually(t, func() bool { return ch.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)

	ch.Disconnect()
	assert.Equal(t, StateDisconnected, ch.State())
}
