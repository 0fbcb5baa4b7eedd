package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
)

// APIError is a non-2xx answer from the data service. It unwraps to the
// pkg sentinel for its status, so errors.Is(err, pkg.ErrForbidden) works the
// same on both sides of the wire.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return pkg.ErrorForStatus(e.Status)
}

// API is the REST client for the data service. Every call carries the current
// session's bearer credential when there is one.
type API struct {
	base  *url.URL
	http  *http.Client
	token func() string
}

// NewAPI builds a client for baseURL (e.g. http://localhost:4003). token is
// called per request; it may return "".
func NewAPI(baseURL string, httpClient *http.Client, token func() string) (*API, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &API{base: u, http: httpClient, token: token}, nil
}

func (a *API) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := a.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPosts fetches one feed page, newest first.
func (a *API) ListPosts(ctx context.Context, page, limit int) (*models.PostPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out models.PostPage
	if err := a.do(ctx, http.MethodGet, "/api/posts", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) CreatePost(ctx context.Context, req *models.CreatePostRequest) (*models.Post, error) {
	var out models.Post
	if err := a.do(ctx, http.MethodPost, "/api/posts", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) ToggleLike(ctx context.Context, postID string) (*models.LikeResult, error) {
	var out models.LikeResult
	if err := a.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/like", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) DeletePost(ctx context.Context, postID string) error {
	return a.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(postID), nil, nil, nil)
}

func (a *API) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var out []models.Comment
	if err := a.do(ctx, http.MethodGet, "/api/comments/"+url.PathEscape(postID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) CreateComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	var out models.Comment
	body := &models.CreateCommentRequest{Content: content}
	if err := a.do(ctx, http.MethodPost, "/api/comments/"+url.PathEscape(postID), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) DeleteComment(ctx context.Context, postID, commentID string) error {
	path := "/api/comments/" + url.PathEscape(postID) + "/" + url.PathEscape(commentID)
	return a.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// OnlineUsers returns the presence snapshot.
func (a *API) OnlineUsers(ctx context.Context) ([]string, error) {
	var out models.OnlineUsers
	if err := a.do(ctx, http.MethodGet, "/api/users/online", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.OnlineUsers, nil
}

// ReportStatus tells the server, and through it every other identity, that
// the caller is online or offline.
func (a *API) ReportStatus(ctx context.Context, isOnline bool) error {
	return a.do(ctx, http.MethodPost, "/api/users/status", nil, &models.StatusReport{IsOnline: isOnline}, nil)
}

// do runs one request. Transport failures wrap pkg.ErrTransport; non-2xx
// answers become *APIError.
func (a *API) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := a.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", pkg.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb pkg.ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: eb.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
