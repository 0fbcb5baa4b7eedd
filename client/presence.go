package client

import (
	"context"
	"slices"
	"sync"

	"github.com/akinalp/pulse/events"
)

// Presence tracks which identities are online: a snapshot from the data
// service, then user:status pushes on top.
type Presence struct {
	api *API

	mu     sync.RWMutex
	online map[string]bool
}

// NewPresence builds an empty tracker.
func NewPresence(api *API) *Presence {
	return &Presence{api: api, online: make(map[string]bool)}
}

// Refresh replaces the set with the server's snapshot.
func (p *Presence) Refresh(ctx context.Context) error {
	ids, err := p.api.OnlineUsers(ctx)
	if err != nil {
		return err
	}

	online := make(map[string]bool, len(ids))
	for _, id := range ids {
		online[id] = true
	}

	p.mu.Lock()
	p.online = online
	p.mu.Unlock()
	return nil
}

// Report announces the caller's own status.
func (p *Presence) Report(ctx context.Context, isOnline bool) error {
	return p.api.ReportStatus(ctx, isOnline)
}

// IsOnline reports whether userID is known to be online.
func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online[userID]
}

// Online returns the online identities, sorted.
func (p *Presence) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p *Presence) apply(e events.UserStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.IsOnline {
		p.online[e.UserID] = true
	} else {
		delete(p.online, e.UserID)
	}
}

// Attach subscribes to user:status. The returned func unsubscribes.
func (p *Presence) Attach(ch *Channel) (detach func()) {
	sub := On(ch, p.apply)
	return func() { ch.Unsubscribe(sub) }
}
