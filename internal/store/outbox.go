package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

// EnqueueNotification records a notification to be delivered by the
// dispatcher. Inside a transaction the intent commits or rolls back with the
// state change that caused it.
func EnqueueNotification(ctx context.Context, q DBTX, n model.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO notification_outbox (username, message, type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		n.Username, n.Message, n.Type, payloadText(n.Payload), utc(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("enqueueing notification: %w", err)
	}
	return nil
}

// PendingOutbox returns up to limit undelivered entries, oldest first,
// skipping entries that already failed maxAttempts times.
func PendingOutbox(ctx context.Context, q DBTX, limit, maxAttempts int) ([]model.OutboxEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, username, message, type, payload, attempts, last_error, created_at
		 FROM notification_outbox WHERE attempts < ?
		 ORDER BY id LIMIT ?`, maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing outbox: %w", err)
	}
	defer rows.Close()

	var entries []model.OutboxEntry
	for rows.Next() {
		var e model.OutboxEntry
		var payload, lastError sql.NullString
		if err := rows.Scan(&e.ID, &e.Username, &e.Message, &e.Type, &payload, &e.Attempts, &lastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning outbox entry: %w", err)
		}
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		e.LastError = lastError.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeliverOutbox moves an entry into notifications. It returns false if the
// entry was already delivered by a concurrent drain.
func DeliverOutbox(ctx context.Context, db *sql.DB, e model.OutboxEntry) (bool, error) {
	delivered := false
	err := InTx(ctx, db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM notification_outbox WHERE id = ?`, e.ID)
		if err != nil {
			return fmt.Errorf("claiming outbox entry: %w", err)
		}
		n, err := rowsAffected(result)
		if err != nil || n == 0 {
			return err
		}

		_, err = CreateNotification(ctx, tx, model.Notification{
			Username:  e.Username,
			Message:   e.Message,
			Type:      e.Type,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
		if err != nil {
			return err
		}
		delivered = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return delivered, nil
}

// FailOutbox records a failed delivery attempt.
func FailOutbox(ctx context.Context, q DBTX, id int64, cause error) error {
	_, err := q.ExecContext(ctx,
		`UPDATE notification_outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		cause.Error(), id,
	)
	if err != nil {
		return fmt.Errorf("recording outbox failure: %w", err)
	}
	return nil
}

// CountOutbox returns the number of undelivered entries.
func CountOutbox(ctx context.Context, q DBTX) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_outbox`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting outbox: %w", err)
	}
	return count, nil
}
