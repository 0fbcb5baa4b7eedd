package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/pulse/models"
)

func post(id string, likes, comments int) models.Post {
	return models.Post{ID: id, Content: "post " + id, LikesCount: likes, CommentCount: comments}
}

func TestCacheSnapshotRestore(t *testing.T) {
	c := NewCache()
	c.SetPosts([]models.Post{post("p2", 1, 0), post("p1", 3, 2)})
	before := c.Posts()

	snap := c.SnapshotPosts()
	c.UpdatePost("p1", func(p *models.Post) { p.LikesCount = 99 })
	c.PrependPost(post("p3", 0, 0))
	c.RemovePost("p2")

	c.RestorePosts(snap)
	assert.Equal(t, before, c.Posts())
}

func TestCacheSnapshotIsACopy(t *testing.T) {
	c := NewCache()
	c.SetPosts([]models.Post{post("p1", 3, 0)})

	snap := c.SnapshotPosts()
	c.UpdatePost("p1", func(p *models.Post) { p.IsLiked = true })
	c.RestorePosts(snap)

	p, ok := c.Post("p1")
	require.True(t, ok)
	assert.False(t, p.IsLiked)
}

func TestCacheCommentCount(t *testing.T) {
	c := NewCache()
	c.SetPosts([]models.Post{post("p1", 0, 2)})

	// Nothing loaded: the count moves alone and never below zero.
	c.PrependComment("p1", models.Comment{ID: "c3", PostID: "p1"})
	p, _ := c.Post("p1")
	assert.Equal(t, 3, p.CommentCount)

	for range 5 {
		c.RemoveComment("p1", "whatever")
	}
	p, _ = c.Post("p1")
	assert.Equal(t, 0, p.CommentCount)

	// Loaded: the count follows the list.
	c.SetComments("p1", []models.Comment{{ID: "c2"}, {ID: "c1"}})
	p, _ = c.Post("p1")
	assert.Equal(t, 2, p.CommentCount)

	c.PrependComment("p1", models.Comment{ID: "c3"})
	list, ok := c.Comments("p1")
	require.True(t, ok)
	assert.Equal(t, "c3", list[0].ID)
	p, _ = c.Post("p1")
	assert.Equal(t, 3, p.CommentCount)

	c.RemoveComment("p1", "c2")
	p, _ = c.Post("p1")
	assert.Equal(t, 2, p.CommentCount)
}

func TestCachePrependCommentAlreadyRefetched(t *testing.T) {
	c := NewCache()
	c.SetPosts([]models.Post{post("p1", 0, 3)})
	c.OpenComments("p1")
	c.SetComments("p1", []models.Comment{{ID: "c3", Content: "stale"}, {ID: "c2"}, {ID: "c1"}})

	c.PrependComment("p1", models.Comment{ID: "c3", Content: "fresh"})

	list, ok := c.Comments("p1")
	require.True(t, ok)
	require.Len(t, list, 3)
	assert.Equal(t, "fresh", list[0].Content)
	p, _ := c.Post("p1")
	assert.Equal(t, 3, p.CommentCount)
}

func TestCacheSetPostsKeepsOpenLists(t *testing.T) {
	c := NewCache()
	c.SetPosts([]models.Post{post("p1", 0, 0), post("p2", 0, 0)})
	c.OpenComments("p1")
	c.SetComments("p1", []models.Comment{{ID: "a"}})
	c.SetComments("p2", []models.Comment{{ID: "b"}})

	c.SetPosts([]models.Post{post("p1", 0, 5), post("p2", 0, 7)})

	p1, _ := c.Post("p1")
	assert.Equal(t, 1, p1.CommentCount)
	_, held := c.Comments("p2")
	assert.False(t, held)
	p2, _ := c.Post("p2")
	assert.Equal(t, 7, p2.CommentCount)
}

func TestCacheRemovePostDropsComments(t *testing.T) {
	c := NewCache()
	c.SetPosts([]models.Post{post("p1", 0, 0)})
	c.OpenComments("p1")
	c.SetComments("p1", []models.Comment{{ID: "a"}})

	c.RemovePost("p1")

	_, ok := c.Post("p1")
	assert.False(t, ok)
	_, held := c.Comments("p1")
	assert.False(t, held)
	assert.False(t, c.IsOpen("p1"))
}
