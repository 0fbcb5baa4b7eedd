package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Post limits.
const (
	MaxPostLength    = 500
	MaxCommentLength = 300
)

// Post is the viewer-specific projection of a post. LikesCount and IsLiked are
// derived from post_likes; CommentCount is the denormalized counter kept in
// step with comment create and delete.
type Post struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	LikesCount   int       `json:"likesCount"`
	IsLiked      bool      `json:"isLiked"`
	CommentCount int       `json:"commentCount"`
	Author       UserRef   `json:"author"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PostPage is one page of the feed, newest first.
type PostPage struct {
	Posts      []Post `json:"posts"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	PostID     string `json:"postId"`
	IsLiked    bool   `json:"isLiked"`
	LikesCount int    `json:"likesCount"`
}

// CreatePostRequest is the body of POST /api/posts.
type CreatePostRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Validate trims and checks content (1-500) and the optional image URL.
func (r *CreatePostRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	n := utf8.RuneCountInString(r.Content)
	if n < 1 || n > MaxPostLength {
		return fmt.Errorf("content must be between 1 and %d characters", MaxPostLength)
	}

	r.ImageURL = strings.TrimSpace(r.ImageURL)
	if r.ImageURL != "" {
		u, err := url.Parse(r.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("imageUrl must be a valid http(s) URL")
		}
	}

	return nil
}
