package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Comment belongs to exactly one post and can be deleted only by its author.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Content   string    `json:"content"`
	Author    UserRef   `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateCommentRequest is the body of POST /api/comments/{postId}.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// Validate trims and checks content (1-300).
func (r *CreateCommentRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	n := utf8.RuneCountInString(r.Content)
	if n < 1 || n > MaxCommentLength {
		return fmt.Errorf("content must be between 1 and %d characters", MaxCommentLength)
	}
	return nil
}
