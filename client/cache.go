package client

import (
	"slices"
	"sync"

	"github.com/akinalp/pulse/models"
)

// Cache is the local view: the post list, and comment lists for the posts
// whose comments have been loaded. Rendering reads from here only.
//
// After any reconciliation that touches a post's comments, that post's
// CommentCount equals the number of comments held for it.
type Cache struct {
	mu       sync.RWMutex
	posts    []models.Post
	comments map[string][]models.Comment
	open     map[string]bool
}

// PostSnapshot is a full copy of the post list taken before an optimistic
// change.
type PostSnapshot struct {
	posts []models.Post
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		comments: make(map[string][]models.Comment),
		open:     make(map[string]bool),
	}
}

// Posts returns a copy of the post list.
func (c *Cache) Posts() []models.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.posts)
}

// Post returns one cached post.
func (c *Cache) Post(id string) (models.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.posts[i], true
	}
	return models.Post{}, false
}

// SetPosts replaces the list with the server's. Open comment lists are kept
// and their posts' counts follow them; lists that are not open are dropped
// since nothing refreshes them.
func (c *Cache) SetPosts(posts []models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.posts = slices.Clone(posts)
	for id, list := range c.comments {
		if !c.open[id] {
			delete(c.comments, id)
			continue
		}
		c.setCount(id, len(list))
	}
}

// PrependPost puts p at the top of the list.
func (c *Cache) PrependPost(p models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(p.ID); i >= 0 {
		c.posts = slices.Delete(c.posts, i, i+1)
	}
	c.posts = slices.Insert(c.posts, 0, p)
}

// RemovePost drops a post and anything held for its comments.
func (c *Cache) RemovePost(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(id); i >= 0 {
		c.posts = slices.Delete(c.posts, i, i+1)
	}
	delete(c.comments, id)
	delete(c.open, id)
}

// UpdatePost applies fn to the cached post. It reports whether the post exists.
func (c *Cache) UpdatePost(id string, fn func(*models.Post)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	fn(&c.posts[i])
	return true
}

// SnapshotPosts captures the whole post list.
func (c *Cache) SnapshotPosts() PostSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return PostSnapshot{posts: slices.Clone(c.posts)}
}

// RestorePosts puts a snapshot back wholesale.
func (c *Cache) RestorePosts(s PostSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = slices.Clone(s.posts)
}

// Comments returns a copy of the comments held for postID.
func (c *Cache) Comments(postID string) ([]models.Comment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list, ok := c.comments[postID]
	return slices.Clone(list), ok
}

// SetComments replaces postID's comments with the server's list.
func (c *Cache) SetComments(postID string, list []models.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.comments[postID] = slices.Clone(list)
	c.setCount(postID, len(list))
}

// PrependComment adds a new comment on top and bumps the post's count.
//
// A refetch triggered by someone else's comment:new can land between the
// server storing this comment and the create call returning, so the list may
// already hold it. In that case the held copy is replaced in place and the
// count stays equal to the list length.
func (c *Cache) PrependComment(postID string, cm models.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, held := c.comments[postID]
	if held {
		if i := slices.IndexFunc(list, func(x models.Comment) bool { return x.ID == cm.ID }); i >= 0 {
			list[i] = cm
		} else {
			c.comments[postID] = slices.Insert(list, 0, cm)
		}
		c.setCount(postID, len(c.comments[postID]))
		return
	}
	// Nothing loaded: the count is all we know.
	if i := c.indexOf(postID); i >= 0 {
		c.posts[i].CommentCount++
	}
}

// RemoveComment drops a comment and lowers the post's count, never below 0.
func (c *Cache) RemoveComment(postID, commentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if list, held := c.comments[postID]; held {
		c.comments[postID] = slices.DeleteFunc(list, func(cm models.Comment) bool {
			return cm.ID == commentID
		})
		c.setCount(postID, len(c.comments[postID]))
		return
	}
	if i := c.indexOf(postID); i >= 0 && c.posts[i].CommentCount > 0 {
		c.posts[i].CommentCount--
	}
}

// OpenComments marks postID's comments as shown; receivers refetch open lists.
func (c *Cache) OpenComments(postID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open[postID] = true
}

// CloseComments unmarks postID. The held list is kept.
func (c *Cache) CloseComments(postID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.open, postID)
}

// IsOpen reports whether postID's comments are shown.
func (c *Cache) IsOpen(postID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open[postID]
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = nil
	c.comments = make(map[string][]models.Comment)
	c.open = make(map[string]bool)
}

func (c *Cache) setCount(postID string, n int) {
	if i := c.indexOf(postID); i >= 0 {
		c.posts[i].CommentCount = max(n, 0)
	}
}

func (c *Cache) indexOf(id string) int {
	return slices.IndexFunc(c.posts, func(p models.Post) bool { return p.ID == id })
}
