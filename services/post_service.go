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

// Feed paging defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// PostService owns the feed. It does not publish push events: the client
// that made a change re-announces it on its own channel after the response.
type PostService interface {
	List(ctx context.Context, viewerID string, page, limit int) (*models.PostPage, error)
	Get(ctx context.Context, postID, viewerID string) (*models.Post, error)
	Create(ctx context.Context, authorID string, req *models.CreatePostRequest) (*models.Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (*models.LikeResult, error)
	Delete(ctx context.Context, postID, userID string) error
}

type postService struct {
	db       *sql.DB // for WithTx
	postRepo repository.PostRepository
}

// NewPostService builds the post service.
func NewPostService(db *sql.DB, postRepo repository.PostRepository) PostService {
	return &postService{db: db, postRepo: postRepo}
}

// List returns one page, newest first. page is 1-based; out-of-range values
// fall back to defaults rather than failing.
func (s *postService) List(ctx context.Context, viewerID string, page, limit int) (*models.PostPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	posts, err := s.postRepo.List(ctx, viewerID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.postRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &models.PostPage{
		Posts:      posts,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *postService) Get(ctx context.Context, postID, viewerID string) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, postID, viewerID)
}

func (s *postService) Create(ctx context.Context, authorID string, req *models.CreatePostRequest) (*models.Post, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	id, err := s.postRepo.Create(ctx, authorID, req)
	if err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, id, authorID)
}

// ToggleLike flips the caller's like and returns the resulting state. The
// flip and the recount run in one transaction so the count matches the flip.
func (s *postService) ToggleLike(ctx context.Context, postID, userID string) (*models.LikeResult, error) {
	result := &models.LikeResult{PostID: postID}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		posts := repository.NewSQLitePostRepo(tx)

		if _, err := posts.AuthorID(ctx, postID); err != nil {
			return err
		}

		liked, err := posts.ToggleLike(ctx, postID, userID)
		if err != nil {
			return err
		}
		count, err := posts.CountLikes(ctx, postID)
		if err != nil {
			return err
		}

		result.IsLiked = liked
		result.LikesCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a post owned by userID. Anyone else gets ErrForbidden.
func (s *postService) Delete(ctx context.Context, postID, userID string) error {
	authorID, err := s.postRepo.AuthorID(ctx, postID)
	if err != nil {
		return err
	}
	if authorID != userID {
		return fmt.Errorf("%w: not authorized to delete this post", pkg.ErrForbidden)
	}
	return s.postRepo.Delete(ctx, postID)
}
