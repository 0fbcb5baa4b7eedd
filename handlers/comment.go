package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
	"github.com/akinalp/pulse/services"
)

// CommentHandler serves /api/comments/{postId}.
type CommentHandler struct {
	commentService services.CommentService
}

// NewCommentHandler builds the handler.
func NewCommentHandler(commentService services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// List handles GET /api/comments/{postId}.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	comments, err := h.commentService.List(r.Context(), r.PathValue("postId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, comments)
}

// Create handles POST /api/comments/{postId}.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comment, err := h.commentService.Create(r.Context(), r.PathValue("postId"), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, comment)
}

// Delete handles DELETE /api/comments/{postId}/{commentId}.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	postID, commentID := r.PathValue("postId"), r.PathValue("commentId")
	if err := h.commentService.Delete(r.Context(), postID, commentID, user.ID); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"postId": postID, "commentId": commentID})
}
