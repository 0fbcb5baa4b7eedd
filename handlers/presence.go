package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
	"github.com/akinalp/pulse/services"
)

// PresenceHandler serves /api/users.
type PresenceHandler struct {
	presenceService services.PresenceService
}

// NewPresenceHandler builds the handler.
func NewPresenceHandler(presenceService services.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

// Online handles GET /api/users/online.
func (h *PresenceHandler) Online(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, h.presenceService.OnlineUsers())
}

// ReportStatus handles POST /api/users/status.
func (h *PresenceHandler) ReportStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.StatusReport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.presenceService.ReportStatus(r.Context(), user.ID, req.IsOnline); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, models.UserStatusResult{UserID: user.ID, IsOnline: req.IsOnline})
}
