package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/lostfound"
	"github.com/erazemk/najdeno/internal/model"
)

// NotificationsHandler handles notification endpoints.
type NotificationsHandler struct {
	Registry *lostfound.Registry
}

// List handles GET /api/notifications. Admins may list another user's
// notifications with ?username=.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	username := r.URL.Query().Get("username")
	if username == "" {
		username = claims.Username
	}
	if username != claims.Username && claims.Role != model.RoleAdmin {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	list, err := h.Registry.ListNotifications(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// Create handles POST /api/notifications.
func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req lostfound.NotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.Registry.CreateNotification(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, n)
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "notification")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Registry.MarkNotificationRead(r.Context(), id, GetClaims(r.Context()).Username); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification marked read"})
}
