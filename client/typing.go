package client

import (
	"slices"
	"sync"
	"time"

	"github.com/akinalp/pulse/events"
)

// TypingTTL is how long a typing indicator lives without a refresh. It covers
// a typing:stop lost to a dropped connection.
const TypingTTL = 5 * time.Second

type typist struct {
	username string
	seen     time.Time
}

// Typing tracks who is writing a comment on which post.
type Typing struct {
	mu     sync.Mutex
	byPost map[string]map[string]typist
	now    func() time.Time
}

// NewTyping builds an empty tracker.
func NewTyping() *Typing {
	return &Typing{byPost: make(map[string]map[string]typist), now: time.Now}
}

// Typers returns the usernames currently typing on postID, sorted.
func (t *Typing) Typers(postID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var names []string
	for userID, ty := range t.byPost[postID] {
		if now.Sub(ty.seen) > TypingTTL {
			delete(t.byPost[postID], userID)
			continue
		}
		names = append(names, ty.username)
	}
	slices.Sort(names)
	return names
}

func (t *Typing) start(e events.UserTyping) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.byPost[e.PostID]
	if !ok {
		users = make(map[string]typist)
		t.byPost[e.PostID] = users
	}
	users[e.UserID] = typist{username: e.Username, seen: t.now()}
}

func (t *Typing) stop(e events.UserTypingStop) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.byPost[e.PostID], e.UserID)
	if len(t.byPost[e.PostID]) == 0 {
		delete(t.byPost, e.PostID)
	}
}

// Attach subscribes to user:typing and user:typing:stop.
func (t *Typing) Attach(ch *Channel) (detach func()) {
	a := On(ch, t.start)
	b := On(ch, t.stop)
	return func() {
		ch.Unsubscribe(a)
		ch.Unsubscribe(b)
	}
}
