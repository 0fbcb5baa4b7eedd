// Package handlers maps HTTP requests onto service calls. Handlers stay thin:
// decode the body, call one service, write the entity or the error. No
// business rule and no SQL lives here.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
	"github.com/akinalp/pulse/pkg/ratelimit"
	"github.com/akinalp/pulse/services"
)

type contextKey string

// UserContextKey carries the authenticated *models.User, set by the auth
// middleware.
const UserContextKey contextKey = "user"

// UserFrom returns the request's authenticated user, if any.
func UserFrom(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
	authService  services.AuthService
	loginLimiter *ratelimit.LoginLimiter
}

// NewAuthHandler builds the handler. A nil loginLimiter disables throttling.
func NewAuthHandler(authService services.AuthService, loginLimiter *ratelimit.LoginLimiter) *AuthHandler {
	return &AuthHandler{authService: authService, loginLimiter: loginLimiter}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login. Attempts are throttled per client IP;
// a successful login clears the counter.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ClientIP(r)
	if h.loginLimiter != nil && !h.loginLimiter.Allow(ip) {
		retry := h.loginLimiter.RetryAfter(ip)
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
			"too many login attempts, please try again in "+ratelimit.RetryMessage(retry))
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if h.loginLimiter != nil {
		h.loginLimiter.Reset(ip)
	}
	pkg.JSON(w, http.StatusOK, resp)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}
	pkg.JSON(w, http.StatusOK, user)
}
