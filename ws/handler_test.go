package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/pulse/events"
	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
)

// fakeValidator accepts tokens of the form "tok-<userID>"; "expired" fails.
type fakeValidator struct{}

func (fakeValidator) ValidateAccessToken(token string) (*models.TokenClaims, error) {
	userID, ok := strings.CutPrefix(token, "tok-")
	if !ok {
		return nil, pkg.ErrUnauthorized
	}
	return &models.TokenClaims{UserID: userID, Username: "name-" + userID}, nil
}

func startGateway(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub, fakeValidator{}, 0).HandleConnection))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return hub, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// dial connects with a bearer credential and waits for the ready frame.
func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	header := http.Header{"Authorization": {"Bearer tok-" + userID}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ready, ok := readEvent(t, conn).(events.Ready)
	require.True(t, ok)
	assert.Equal(t, userID, ready.UserID)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Payload {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	_, p, err := events.DecodeFrame(frame)
	require.NoError(t, err)
	return p
}

func send(t *testing.T, conn *websocket.Conn, p events.Payload) {
	t.Helper()
	frame, err := events.Encode(p, 0)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func TestHandshakeRejectsBadCredentials(t *testing.T) {
	hub, srv := startGateway(t)

	tests := []struct {
		name   string
		header http.Header
		query  string
	}{
		{"missing", nil, ""},
		{"expired bearer", http.Header{"Authorization": {"Bearer expired"}}, ""},
		{"expired query", nil, "?token=expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv)+tt.query, tt.header)
			if conn != nil {
				conn.Close()
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var body pkg.ErrorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}

	assert.Zero(t, hub.GroupSize(GroupFeed), "rejected handshakes never join the feed")
	assert.Empty(t, hub.OnlineUserIDs())
}

func TestQueryTokenIsAccepted(t *testing.T) {
	hub, srv := startGateway(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token=tok-u1", nil)
	require.NoError(t, err)
	defer conn.Close()

	_, ok := readEvent(t, conn).(events.Ready)
	assert.True(t, ok)
	assert.True(t, hub.IsOnline("u1"))
}

func TestRelayBetweenConnections(t *testing.T) {
	_, srv := startGateway(t)
	a := dial(t, srv, "a")
	b := dial(t, srv, "b")

	send(t, a, events.PostLiked{PostID: "p1", IsLiked: true, LikesCount: 4})
	assert.Equal(t, events.PostLike{PostID: "p1", IsLiked: true, LikesCount: 4}, readEvent(t, b))

	// Frames on one connection are ordered, so if A had been echoed its own
	// event it would arrive before the heartbeat ack.
	send(t, a, events.Heartbeat{})
	assert.Equal(t, events.HeartbeatAck{}, readEvent(t, a))

	send(t, b, events.TypingStart{PostID: "p1"})
	assert.Equal(t, events.UserTyping{UserID: "b", Username: "name-b", PostID: "p1"}, readEvent(t, a))
}

func TestForgedAndMalformedFramesAreDropped(t *testing.T) {
	_, srv := startGateway(t)
	a := dial(t, srv, "a")
	b := dial(t, srv, "b")

	send(t, a, events.UserStatus{UserID: "someone", IsOnline: true})
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"op":"nope"}`)))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	send(t, a, events.PostDeleted{PostID: "p9"})

	assert.Equal(t, events.PostRemoved{PostID: "p9"}, readEvent(t, b),
		"only the valid relayable event reaches B, and A stays connected")
}

func TestDisconnectLeavesGroup(t *testing.T) {
	hub, srv := startGateway(t)
	a := dial(t, srv, "a")
	b := dial(t, srv, "b")
	require.Equal(t, 2, hub.GroupSize(GroupFeed))

	require.NoError(t, b.Close())
	assert.Eventually(t, func() bool { return !hub.IsOnline("b") }, 2*time.Second, 10*time.Millisecond)

	send(t, a, events.Heartbeat{})
	assert.Equal(t, events.HeartbeatAck{}, readEvent(t, a))
	assert.Equal(t, []string{"a"}, hub.OnlineUserIDs())
}
