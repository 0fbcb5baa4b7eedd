package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akinalp/pulse/database"
	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
	"github.com/akinalp/pulse/repository"
)

// CommentService manages comments and keeps posts.comment_count in step:
// each create or delete and its counter update commit together.
type CommentService interface {
	List(ctx context.Context, postID string) ([]models.Comment, error)
	Create(ctx context.Context, postID, authorID string, req *models.CreateCommentRequest) (*models.Comment, error)
	Delete(ctx context.Context, postID, commentID, userID string) error
}

type commentService struct {
	db          *sql.DB
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
}

// NewCommentService builds the comment service.
func NewCommentService(db *sql.DB, postRepo repository.PostRepository, commentRepo repository.CommentRepository) CommentService {
	return &commentService{db: db, postRepo: postRepo, commentRepo: commentRepo}
}

// List returns the post's comments, newest first. A missing post is 404.
func (s *commentService) List(ctx context.Context, postID string) ([]models.Comment, error) {
	if _, err := s.postRepo.AuthorID(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

func (s *commentService) Create(ctx context.Context, postID, authorID string, req *models.CreateCommentRequest) (*models.Comment, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	var comment *models.Comment
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		posts := repository.NewSQLitePostRepo(tx)
		comments := repository.NewSQLiteCommentRepo(tx)

		if _, err := posts.AuthorID(ctx, postID); err != nil {
			return err
		}

		c, err := comments.Create(ctx, postID, authorID, req.Content)
		if err != nil {
			return err
		}
		if err := posts.AdjustCommentCount(ctx, postID, 1); err != nil {
			return err
		}

		comment = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Delete removes a comment. Only its author may delete it, and the comment
// must belong to postID.
func (s *commentService) Delete(ctx context.Context, postID, commentID, userID string) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		posts := repository.NewSQLitePostRepo(tx)
		comments := repository.NewSQLiteCommentRepo(tx)

		c, err := comments.GetByID(ctx, commentID)
		if err != nil {
			return err
		}
		if c.PostID != postID {
			return fmt.Errorf("%w: comment", pkg.ErrNotFound)
		}
		if c.Author.ID != userID {
			return fmt.Errorf("%w: not authorized to delete this comment", pkg.ErrForbidden)
		}

		if err := comments.Delete(ctx, commentID); err != nil {
			return err
		}
		return posts.AdjustCommentCount(ctx, postID, -1)
	})
}
