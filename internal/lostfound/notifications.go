package lostfound

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// NotificationRequest is a directly created notification.
type NotificationRequest struct {
	Username string          `json:"username"`
	Message  string          `json:"message"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

// CreateNotification stores a notification outside the match and claim
// flows. The type defaults to info; the payload, if any, must be a JSON
// object.
func (r *Registry) CreateNotification(ctx context.Context, req NotificationRequest) (*model.Notification, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, apperr.Validation("username is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperr.Validation("message is required")
	}
	if req.Type == "" {
		req.Type = model.NotificationInfo
	}
	if !model.ValidNotificationType(req.Type) {
		return nil, apperr.Validation("unknown notification type %q", req.Type)
	}

	payload := bytes.TrimSpace(req.Payload)
	if bytes.Equal(payload, []byte("null")) {
		payload = nil
	}
	if len(payload) > 0 {
		var obj map[string]any
		if err := json.Unmarshal(payload, &obj); err != nil {
			return nil, apperr.Validation("payload must be a JSON object")
		}
	}

	return store.CreateNotification(ctx, r.DB, model.Notification{
		Username:  req.Username,
		Message:   req.Message,
		Type:      req.Type,
		Payload:   payload,
		CreatedAt: r.now(),
	})
}

// ListNotifications returns a user's notifications, newest first. Pending
// intents are delivered first so none are missing from the list.
func (r *Registry) ListNotifications(ctx context.Context, username string) ([]model.Notification, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperr.Validation("username is required")
	}
	r.flush(ctx)

	list, err := store.ListNotifications(ctx, r.DB, username)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// MarkNotificationRead marks one of username's notifications as read.
func (r *Registry) MarkNotificationRead(ctx context.Context, id int64, username string) error {
	return store.MarkNotificationRead(ctx, r.DB, id, username)
}
