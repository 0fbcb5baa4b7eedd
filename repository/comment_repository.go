package repository

import (
	"context"

	"github.com/akinalp/pulse/models"
)

// CommentRepository stores comments. It does not touch posts.comment_count;
// the comment service pairs each write with PostRepository.AdjustCommentCount
// inside one transaction.
type CommentRepository interface {
	Create(ctx context.Context, postID, authorID, content string) (*models.Comment, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]models.Comment, error)
	Delete(ctx context.Context, id string) error
}
