// Package client is the Go SDK for pulse: a session store, the REST client,
// the push channel, and a local view cache kept consistent with the server.
//
//	c, _ := client.New(client.Options{BaseURL: "http://localhost:4003"})
//	defer c.Close()
//	if _, err := c.Login(ctx, "me@example.com", "secret"); err != nil { ... }
//	_ = c.Feed.Refresh(ctx)
//	_, _ = c.Feed.ToggleLike(ctx, postID)
//
// A Client owns exactly one session and one channel; there is no package
// level state.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
)

// Options configures New.
type Options struct {
	BaseURL    string       // http(s)://host:port of the server
	Store      SessionStore // defaults to a MemoryStore
	HTTPClient *http.Client
	Dialer     *websocket.Dialer

	// Reconnect policy; zero values take DefaultRetryDelay and DefaultMaxAttempts.
	RetryDelay  time.Duration
	MaxAttempts int
}

// Client ties the pieces to one session.
type Client struct {
	API      *API
	Channel  *Channel
	Cache    *Cache
	Feed     *Feed
	Presence *Presence
	Typing   *Typing

	store   SessionStore
	mu      sync.RWMutex
	session *Session
	detach  []func()
}

// New builds a client. Nothing touches the network until Login, Register or
// Resume.
func New(opts Options) (*Client, error) {
	wsURL, err := gatewayURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{store: opts.Store}
	if c.store == nil {
		c.store = NewMemoryStore()
	}

	c.API, err = NewAPI(opts.BaseURL, opts.HTTPClient, c.token)
	if err != nil {
		return nil, err
	}
	c.Channel = NewChannel(ChannelOptions{
		URL:         wsURL,
		Dialer:      opts.Dialer,
		RetryDelay:  opts.RetryDelay,
		MaxAttempts: opts.MaxAttempts,
	})
	c.Cache = NewCache()
	c.Feed = NewFeed(c.API, c.Cache, c.Channel)
	c.Presence = NewPresence(c.API)
	c.Typing = NewTyping()

	c.detach = []func(){
		c.Feed.Attach(),
		c.Presence.Attach(c.Channel),
		c.Typing.Attach(c.Channel),
	}
	return c, nil
}

// gatewayURL maps http://host/ onto ws://host/ws.
func gatewayURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", base)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid base URL %q", base)
	}
	return u.JoinPath("ws").String(), nil
}

// Session returns the active session, or nil.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

// Login authenticates, stores the session and connects the channel. If only
// the connect fails, the session is kept and the error wraps pkg.ErrTransport.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.API.Login(ctx, &models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return c.begin(ctx, resp)
}

// Register creates the identity and then behaves like Login.
func (c *Client) Register(ctx context.Context, req *models.RegisterRequest) (*Session, error) {
	resp, err := c.API.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.begin(ctx, resp)
}

// Resume picks up a stored session. An expired one is cleared and reported as
// pkg.ErrUnauthorized.
func (c *Client) Resume(ctx context.Context) (*Session, error) {
	s, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if s.Expired(time.Now()) {
		_ = c.store.Clear()
		return nil, fmt.Errorf("%w: session expired", pkg.ErrUnauthorized)
	}
	c.setSession(s)
	return s, c.Channel.Connect(ctx, s.Token)
}

// Logout disconnects, forgets the session and empties the local view.
func (c *Client) Logout() error {
	c.Channel.Disconnect()
	c.setSession(nil)
	c.Cache.Reset()
	if err := c.store.Clear(); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	return nil
}

// Close releases the channel. The stored session is kept.
func (c *Client) Close() {
	for _, d := range c.detach {
		d()
	}
	c.Channel.Close()
}

func (c *Client) begin(ctx context.Context, resp *models.AuthResponse) (*Session, error) {
	s, err := NewSession(resp)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	// A new identity must not inherit the previous one's connection.
	c.Channel.Disconnect()
	c.Cache.Reset()
	c.setSession(s)

	return s, c.Channel.Connect(ctx, s.Token)
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}
