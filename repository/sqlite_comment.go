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

type sqliteCommentRepo struct {
	db database.TxQuerier
}

// NewSQLiteCommentRepo returns the SQLite CommentRepository.
func NewSQLiteCommentRepo(db database.TxQuerier) CommentRepository {
	return &sqliteCommentRepo{db: db}
}

const commentSelect = `
	SELECT c.id, c.post_id, c.content, c.created_at,
	       u.id, u.username, u.display_name, u.avatar_url
	FROM comments c
	JOIN users u ON u.id = c.user_id`

func scanComment(s rowScanner) (models.Comment, error) {
	var c models.Comment
	err := s.Scan(
		&c.ID, &c.PostID, &c.Content, &c.CreatedAt,
		&c.Author.ID, &c.Author.Username, &c.Author.DisplayName, &c.Author.AvatarURL,
	)
	return c, err
}

func (r *sqliteCommentRepo) Create(ctx context.Context, postID, authorID, content string) (*models.Comment, error) {
	id := newID()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, user_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, postID, authorID, content, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *sqliteCommentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: comment", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &c, nil
}

// ListByPost returns the post's comments newest first.
func (r *sqliteCommentRepo) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		commentSelect+` WHERE c.post_id = ? ORDER BY c.created_at DESC, c.id DESC`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}
	return comments, nil
}

func (r *sqliteCommentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return expectOneRow(res, "comment")
}
