package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akinalp/pulse/database"
	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
)

type sqlitePostRepo struct {
	db database.TxQuerier
}

// NewSQLitePostRepo returns the SQLite PostRepository.
func NewSQLitePostRepo(db database.TxQuerier) PostRepository {
	return &sqlitePostRepo{db: db}
}

// postSelect projects a post for one viewer (first bind parameter).
const postSelect = `
	SELECT p.id, p.content, p.image_url, p.comment_count, p.created_at, p.updated_at,
	       u.id, u.username, u.display_name, u.avatar_url,
	       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id),
	       EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = ?)
	FROM posts p
	JOIN users u ON u.id = p.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (models.Post, error) {
	var p models.Post
	err := s.Scan(
		&p.ID, &p.Content, &p.ImageURL, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.ID, &p.Author.Username, &p.Author.DisplayName, &p.Author.AvatarURL,
		&p.LikesCount, &p.IsLiked,
	)
	return p, err
}

func (r *sqlitePostRepo) Create(ctx context.Context, authorID string, req *models.CreatePostRequest) (string, error) {
	id := newID()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, user_id, content, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, authorID, req.Content, req.ImageURL, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create post: %w", err)
	}
	return id, nil
}

func (r *sqlitePostRepo) GetByID(ctx context.Context, id, viewerID string) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, viewerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: post", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &p, nil
}

func (r *sqlitePostRepo) List(ctx context.Context, viewerID string, limit, offset int) ([]models.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		postSelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`,
		viewerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}
	return posts, nil
}

func (r *sqlitePostRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

func (r *sqlitePostRepo) AuthorID(ctx context.Context, id string) (string, error) {
	var authorID string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM posts WHERE id = ?`, id).Scan(&authorID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: post", pkg.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get post author: %w", err)
	}
	return authorID, nil
}

// Delete removes the post; comments and likes go with it through ON DELETE CASCADE.
func (r *sqlitePostRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return expectOneRow(res, "post")
}

// ToggleLike tries INSERT OR IGNORE first. No inserted row means the like
// already existed, so it is removed instead. The (post_id, user_id) primary
// key makes the pair unique.
func (r *sqlitePostRepo) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
		postID, userID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("toggle like insert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle like rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID,
	); err != nil {
		return false, fmt.Errorf("toggle like delete: %w", err)
	}
	return false, nil
}

func (r *sqlitePostRepo) CountLikes(ctx context.Context, postID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id = ?`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return n, nil
}

func (r *sqlitePostRepo) AdjustCommentCount(ctx context.Context, postID string, delta int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET comment_count = MAX(comment_count + ?, 0) WHERE id = ?`,
		delta, postID,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust comment count: %w", err)
	}
	return expectOneRow(res, "post")
}
