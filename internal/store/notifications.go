package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/model"
)

// CreateNotification stores a notification. A zero CreatedAt means now.
func CreateNotification(ctx context.Context, q DBTX, n model.Notification) (*model.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO notifications (username, message, type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		n.Username, n.Message, n.Type, payloadText(n.Payload), utc(n.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting notification id: %w", err)
	}

	return GetNotification(ctx, q, id)
}

// GetNotification returns a notification by ID, or nil if it does not exist.
func GetNotification(ctx context.Context, q DBTX, id int64) (*model.Notification, error) {
	n, err := scanNotification(q.QueryRowContext(ctx,
		`SELECT id, username, message, type, payload, read, created_at
		 FROM notifications WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func ListNotifications(ctx context.Context, q DBTX, username string) ([]model.Notification, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, username, message, type, payload, read, created_at
		 FROM notifications WHERE username = ?
		 ORDER BY created_at DESC, id DESC`, username,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var list []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

// MarkNotificationRead sets the read flag on one of username's notifications.
func MarkNotificationRead(ctx context.Context, q DBTX, id int64, username string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND username = ?`,
		id, username,
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("notification %d not found", id)
	}
	return nil
}

func scanNotification(row scanner) (*model.Notification, error) {
	n := &model.Notification{}
	var payload sql.NullString
	if err := row.Scan(&n.ID, &n.Username, &n.Message, &n.Type, &payload, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	if payload.Valid {
		n.Payload = []byte(payload.String)
	}
	return n, nil
}

func payloadText(p []byte) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}
