package repository

import (
	"context"

	"github.com/akinalp/pulse/models"
)

// PostRepository stores posts and likes.
//
// Methods that return a models.Post take a viewerID so IsLiked can be
// derived per viewer; pass "" for an anonymous viewer.
type PostRepository interface {
	Create(ctx context.Context, authorID string, req *models.CreatePostRequest) (string, error)
	GetByID(ctx context.Context, id, viewerID string) (*models.Post, error)
	List(ctx context.Context, viewerID string, limit, offset int) ([]models.Post, error)
	Count(ctx context.Context) (int, error)
	AuthorID(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error

	// ToggleLike adds the like if absent and removes it if present.
	// It reports whether the post is liked afterwards.
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int, error)

	// AdjustCommentCount adds delta to comment_count, never going below zero.
	AdjustCommentCount(ctx context.Context, postID string, delta int) error
}
