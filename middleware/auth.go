// Package middleware holds the http.Handler wrappers placed in front of the
// API handlers. Each is a func(next http.Handler) http.Handler: it does its
// check and either calls next or answers the request itself.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/akinalp/pulse/handlers"
	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
	"github.com/akinalp/pulse/pkg/cache"
	"github.com/akinalp/pulse/repository"
	"github.com/akinalp/pulse/services"
)

// userCacheTTL bounds how stale a cached profile in the request context can be.
const userCacheTTL = 30 * time.Second

// AuthMiddleware resolves "Authorization: Bearer <token>" to a user.
type AuthMiddleware struct {
	authService services.AuthService
	userRepo    repository.UserRepository
	users       *cache.TTLCache[string, *models.User]
}

// NewAuthMiddleware builds the middleware. Call Close on shutdown to stop the
// user cache sweeper.
func NewAuthMiddleware(authService services.AuthService, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
		users:       cache.New[string, *models.User](userCacheTTL, time.Minute),
	}
}

// Close stops the cache sweeper.
func (m *AuthMiddleware) Close() {
	m.users.Close()
}

// Require rejects the request with 401 unless it carries a valid credential
// for an existing user.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}

		user, err := m.resolve(r.Context(), token)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), handlers.UserContextKey, user)))
	})
}

// Optional attaches the user when a valid credential is present and otherwise
// lets the request through anonymously. A bad token is not an error here.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok && token != "" {
			if user, err := m.resolve(r.Context(), token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), handlers.UserContextKey, user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// resolve validates token and loads its user. A user deleted after the token
// was issued is an auth failure.
func (m *AuthMiddleware) resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := m.authService.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}

	if user, ok := m.users.Get(claims.UserID); ok {
		return user, nil
	}

	user, err := m.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, pkg.ErrUnauthorized
		}
		return nil, err
	}
	user.PasswordHash = ""
	m.users.Set(claims.UserID, user)
	return user, nil
}
