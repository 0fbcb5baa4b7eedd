// Package models defines the domain types shared by the server, the client
// SDK and the push protocol. JSON tags are the wire contract (camelCase).
package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// User is a registered identity. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	AvatarURL    string    `json:"avatar"`
	Bio          string    `json:"bio"`
	IsOnline     bool      `json:"isOnline"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Ref projects the user down to what a post or comment shows about its author.
func (u *User) Ref() UserRef {
	return UserRef{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// UserRef is the author projection embedded in posts and comments.
type UserRef struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatar"`
}

// DefaultAvatar returns the generated avatar URL for a username.
func DefaultAvatar(username string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + username
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// Validate trims the request in place and checks it:
//   - username: 3-30 characters, letters, digits and underscore
//   - email: a single address
//   - password: at least 6 characters
//   - displayName: 1-50 characters
func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	n := utf8.RuneCountInString(r.Username)
	if n < 3 || n > 30 {
		return fmt.Errorf("username must be between 3 and 30 characters")
	}
	for _, ch := range r.Username {
		if !isUsernameChar(ch) {
			return fmt.Errorf("username can only contain letters, numbers, and underscores")
		}
	}

	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return fmt.Errorf("please provide a valid email")
	}

	if utf8.RuneCountInString(r.Password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	r.DisplayName = strings.TrimSpace(r.DisplayName)
	n = utf8.RuneCountInString(r.DisplayName)
	if n < 1 || n > 50 {
		return fmt.Errorf("display name must be between 1 and 50 characters")
	}

	return nil
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate only checks presence; wrong credentials are an auth failure.
func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func isUsernameChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '_'
}
