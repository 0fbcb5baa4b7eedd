package client

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/akinalp/pulse/events"
	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg/logger"
)

// DefaultPageSize is how many posts Refresh loads.
const DefaultPageSize = 20

// refetchTimeout bounds a refetch triggered by a push event.
const refetchTimeout = 10 * time.Second

// Feed performs mutations against the data service and keeps the Cache
// consistent with them.
//
// The initiator changes its own cache from the server's answer (the like
// toggle alone is optimistic) and then re-announces the change on the
// channel. Receivers treat every announcement as a dirty bit and refetch,
// so duplicates and reordering converge on server state.
type Feed struct {
	api      *API
	cache    *Cache
	ch       *Channel
	pageSize int
	log      zerolog.Logger
}

// NewFeed builds the feed. Call Attach to start reacting to push events.
func NewFeed(api *API, cache *Cache, ch *Channel) *Feed {
	return &Feed{
		api:      api,
		cache:    cache,
		ch:       ch,
		pageSize: DefaultPageSize,
		log:      logger.WithComponent("client"),
	}
}

// Refresh replaces the cached post list with the first page from the server.
func (f *Feed) Refresh(ctx context.Context) error {
	page, err := f.api.ListPosts(ctx, 1, f.pageSize)
	if err != nil {
		return err
	}
	f.cache.SetPosts(page.Posts)
	return nil
}

// OpenComments loads postID's comments and marks them open, so that later
// comment events for the post trigger a refetch.
func (f *Feed) OpenComments(ctx context.Context, postID string) ([]models.Comment, error) {
	f.cache.OpenComments(postID)
	if err := f.RefreshComments(ctx, postID); err != nil {
		return nil, err
	}
	list, _ := f.cache.Comments(postID)
	return list, nil
}

// CloseComments stops refetching postID's comments.
func (f *Feed) CloseComments(postID string) {
	f.cache.CloseComments(postID)
}

// RefreshComments replaces postID's cached comments with the server's list.
func (f *Feed) RefreshComments(ctx context.Context, postID string) error {
	list, err := f.api.ListComments(ctx, postID)
	if err != nil {
		return err
	}
	f.cache.SetComments(postID, list)
	return nil
}

// CreatePost adds the post to the cache once the server has accepted it.
func (f *Feed) CreatePost(ctx context.Context, content, imageURL string) (*models.Post, error) {
	post, err := f.api.CreatePost(ctx, &models.CreatePostRequest{Content: content, ImageURL: imageURL})
	if err != nil {
		return nil, err
	}
	f.cache.PrependPost(*post)
	f.ch.Emit(events.PostCreated{Post: *post})
	return post, nil
}

// ToggleLike flips the like before the server answers. On failure the whole
// post list is restored from the snapshot taken before the flip.
func (f *Feed) ToggleLike(ctx context.Context, postID string) (*models.LikeResult, error) {
	snap := f.cache.SnapshotPosts()
	f.cache.UpdatePost(postID, func(p *models.Post) {
		if p.IsLiked {
			p.LikesCount = max(p.LikesCount-1, 0)
		} else {
			p.LikesCount++
		}
		p.IsLiked = !p.IsLiked
	})

	res, err := f.api.ToggleLike(ctx, postID)
	if err != nil {
		f.cache.RestorePosts(snap)
		return nil, err
	}

	f.cache.UpdatePost(postID, func(p *models.Post) {
		p.IsLiked = res.IsLiked
		p.LikesCount = res.LikesCount
	})
	f.ch.Emit(events.PostLiked{PostID: postID, IsLiked: res.IsLiked, LikesCount: res.LikesCount})
	return res, nil
}

// CreateComment prepends the server's comment and bumps the post's count.
func (f *Feed) CreateComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	cm, err := f.api.CreateComment(ctx, postID, content)
	if err != nil {
		return nil, err
	}
	f.cache.PrependComment(postID, *cm)
	f.ch.Emit(events.CommentCreated{PostID: postID, Comment: *cm})
	return cm, nil
}

// DeleteComment removes the comment once the server has.
func (f *Feed) DeleteComment(ctx context.Context, postID, commentID string) error {
	if err := f.api.DeleteComment(ctx, postID, commentID); err != nil {
		return err
	}
	f.cache.RemoveComment(postID, commentID)
	f.ch.Emit(events.CommentDeleted{PostID: postID, CommentID: commentID})
	return nil
}

// DeletePost removes the post once the server has.
func (f *Feed) DeletePost(ctx context.Context, postID string) error {
	if err := f.api.DeletePost(ctx, postID); err != nil {
		return err
	}
	f.cache.RemovePost(postID)
	f.ch.Emit(events.PostDeleted{PostID: postID})
	return nil
}

// StartTyping tells the others the caller is writing a comment on postID.
func (f *Feed) StartTyping(postID string) {
	f.ch.Emit(events.TypingStart{PostID: postID})
}

// StopTyping clears StartTyping.
func (f *Feed) StopTyping(postID string) {
	f.ch.Emit(events.TypingStop{PostID: postID})
}

// Attach subscribes the receivers. The returned func unsubscribes them.
func (f *Feed) Attach() (detach func()) {
	subs := []*Subscription{
		On(f.ch, func(events.PostNew) { f.refetchPosts() }),
		On(f.ch, func(events.PostLike) { f.refetchPosts() }),
		On(f.ch, func(events.PostRemoved) { f.refetchPosts() }),
		On(f.ch, func(e events.CommentNew) { f.refetchComments(e.PostID) }),
		On(f.ch, func(e events.CommentRemoved) { f.refetchComments(e.PostID) }),
	}
	return func() {
		for _, s := range subs {
			f.ch.Unsubscribe(s)
		}
	}
}

func (f *Feed) refetchPosts() {
	ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
	defer cancel()
	if err := f.Refresh(ctx); err != nil {
		f.log.Warn().Err(err).Msg("post list refetch failed")
	}
}

func (f *Feed) refetchComments(postID string) {
	if !f.cache.IsOpen(postID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
	defer cancel()
	if err := f.RefreshComments(ctx, postID); err != nil {
		f.log.Warn().Err(err).Str("post_id", postID).Msg("comment refetch failed")
	}
}
