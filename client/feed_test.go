package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
)

// fakeData is an in-memory data service. likeMode selects how the like
// endpoint answers.
type fakeData struct {
	mu       sync.Mutex
	posts    []models.Post
	comments map[string][]models.Comment
	likeMode string // "ok", "fail", "block"
	arrived  chan struct{}
	release  chan struct{}
}

func newFakeData(posts ...models.Post) *fakeData {
	return &fakeData{
		posts:    posts,
		comments: make(map[string][]models.Comment),
		likeMode: "ok",
		arrived:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
}

func (f *fakeData) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		pkg.JSON(w, http.StatusOK, models.PostPage{Posts: f.posts, Page: 1, Limit: 20, Total: len(f.posts)})
	})
	mux.HandleFunc("POST /api/posts/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		mode := f.likeMode
		f.mu.Unlock()

		switch mode {
		case "fail":
			pkg.ErrorWithMessage(w, http.StatusInternalServerError, "internal server error")
			return
		case "block":
			f.arrived <- struct{}{}
			<-f.release
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.posts {
			p := &f.posts[i]
			if p.ID != r.PathValue("id") {
				continue
			}
			if p.IsLiked {
				p.LikesCount--
			} else {
				p.LikesCount++
			}
			p.IsLiked = !p.IsLiked
			pkg.JSON(w, http.StatusOK, models.LikeResult{PostID: p.ID, IsLiked: p.IsLiked, LikesCount: p.LikesCount})
			return
		}
		pkg.ErrorWithMessage(w, http.StatusNotFound, "not found: post")
	})
	mux.HandleFunc("GET /api/comments/{postId}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list := f.comments[r.PathValue("postId")]
		if list == nil {
			list = []models.Comment{}
		}
		pkg.JSON(w, http.StatusOK, list)
	})
	mux.HandleFunc("POST /api/comments/{postId}", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateCommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		postID := r.PathValue("postId")
		cm := models.Comment{ID: "c" + string(rune('a'+len(f.comments[postID]))), PostID: postID, Content: req.Content}
		f.comments[postID] = append([]models.Comment{cm}, f.comments[postID]...)
		pkg.JSON(w, http.StatusCreated, cm)
	})
	mux.HandleFunc("DELETE /api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		pkg.ErrorWithMessage(w, http.StatusForbidden, "forbidden: not authorized to delete this post")
	})
	return mux
}

func newFeedClient(t *testing.T, data *fakeData) *Client {
	t.Helper()
	srv := httptest.NewServer(data.handler())
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.NoError(t, c.Feed.Refresh(context.Background()))
	return c
}

func TestToggleLikeOptimistic(t *testing.T) {
	data := newFakeData(post("p1", 3, 0))
	data.likeMode = "block"
	c := newFeedClient(t, data)

	done := make(chan *models.LikeResult)
	go func() {
		res, err := c.Feed.ToggleLike(context.Background(), "p1")
		assert.NoError(t, err)
		done <- res
	}()

	<-data.arrived
	p, _ := c.Cache.Post("p1")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 4, p.LikesCount)

	close(data.release)
	res := <-done
	assert.Equal(t, models.LikeResult{PostID: "p1", IsLiked: true, LikesCount: 4}, *res)

	p, _ = c.Cache.Post("p1")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 4, p.LikesCount)
}

func TestToggleLikeRollsBackWholeList(t *testing.T) {
	data := newFakeData(post("p2", 0, 1), post("p1", 3, 0))
	data.likeMode = "fail"
	c := newFeedClient(t, data)
	before := c.Cache.Posts()

	_, err := c.Feed.ToggleLike(context.Background(), "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrInternal)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)

	assert.Equal(t, before, c.Cache.Posts())
}

func TestToggleLikeTwiceRestores(t *testing.T) {
	data := newFakeData(post("p1", 3, 0))
	c := newFeedClient(t, data)
	ctx := context.Background()
	before, _ := c.Cache.Post("p1")

	_, err := c.Feed.ToggleLike(ctx, "p1")
	require.NoError(t, err)
	res, err := c.Feed.ToggleLike(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, before.IsLiked, res.IsLiked)
	assert.Equal(t, before.LikesCount, res.LikesCount)
	after, _ := c.Cache.Post("p1")
	assert.Equal(t, before, after)
}

func TestFailedMutationLeavesCache(t *testing.T) {
	data := newFakeData(post("p1", 0, 0))
	c := newFeedClient(t, data)
	before := c.Cache.Posts()

	err := c.Feed.DeletePost(context.Background(), "p1")
	assert.ErrorIs(t, err, pkg.ErrForbidden)
	assert.Equal(t, before, c.Cache.Posts())
}

func TestCreateCommentUpdatesCount(t *testing.T) {
	data := newFakeData(post("p1", 0, 0))
	c := newFeedClient(t, data)
	ctx := context.Background()

	_, err := c.Feed.OpenComments(ctx, "p1")
	require.NoError(t, err)

	cm, err := c.Feed.CreateComment(ctx, "p1", "hello")
	require.NoError(t, err)

	list, _ := c.Cache.Comments("p1")
	require.Len(t, list, 1)
	assert.Equal(t, cm.ID, list[0].ID)
	p, _ := c.Cache.Post("p1")
	assert.Equal(t, 1, p.CommentCount)
}

// Re-fetching is the whole reaction to an event, so any number of duplicate
// or reordered notifications lands on the server's state.
func TestRefetchConverges(t *testing.T) {
	data := newFakeData(post("p1", 0, 0))
	c := newFeedClient(t, data)
	ctx := context.Background()

	_, err := c.Feed.OpenComments(ctx, "p1")
	require.NoError(t, err)

	// The server moves on without this client.
	data.mu.Lock()
	data.posts = []models.Post{post("p3", 2, 0), post("p2", 0, 0), post("p1", 5, 2)}
	data.comments["p1"] = []models.Comment{{ID: "c2", PostID: "p1"}, {ID: "c1", PostID: "p1"}}
	want := append([]models.Post(nil), data.posts...)
	wantComments := append([]models.Comment(nil), data.comments["p1"]...)
	data.mu.Unlock()

	reactions := []func(){
		func() { c.Feed.refetchComments("p1") },
		c.Feed.refetchPosts,
		c.Feed.refetchPosts,
		func() { c.Feed.refetchComments("p1") },
		c.Feed.refetchPosts,
	}
	for _, react := range reactions {
		react()
	}

	assert.Equal(t, want, c.Cache.Posts())
	got, _ := c.Cache.Comments("p1")
	assert.Equal(t, wantComments, got)
}

func TestRefetchCommentsOnlyWhenOpen(t *testing.T) {
	data := newFakeData(post("p1", 0, 0))
	c := newFeedClient(t, data)

	data.mu.Lock()
	data.comments["p1"] = []models.Comment{{ID: "c1", PostID: "p1"}}
	data.mu.Unlock()

	c.Feed.refetchComments("p1")
	_, held := c.Cache.Comments("p1")
	assert.False(t, held)
}
