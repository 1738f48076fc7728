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

const claimSelect = `SELECT c.id, c.item_id, c.report_id, c.student, c.message, c.status,
	       c.admin, c.decision_note, c.created_at, c.updated_at,
	       i.name AS item_name, i.image_path AS item_image
	FROM claims c
	LEFT JOIN items i ON i.id = c.item_id`

// CreateClaim records a pending claim on an item.
func CreateClaim(ctx context.Context, q DBTX, itemID int64, reportID *int64, student, message string, at time.Time) (*model.Claim, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO claims (item_id, report_id, student, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		itemID, reportID, student, nullString(message), model.ClaimStatusPending, utc(at),
	)
	if err != nil {
		return nil, fmt.Errorf("creating claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting claim id: %w", err)
	}

	return GetClaim(ctx, q, id)
}

// GetClaim returns a claim by ID, or nil if it does not exist.
func GetClaim(ctx context.Context, q DBTX, id int64) (*model.Claim, error) {
	c, err := scanClaim(q.QueryRowContext(ctx, claimSelect+` WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}
	return c, nil
}

// ListClaims returns claims newest first, optionally filtered by status.
func ListClaims(ctx context.Context, q DBTX, status string) ([]model.Claim, error) {
	query := claimSelect + ` WHERE 1=1`
	var args []any

	if status != "" {
		query += ` AND c.status = ?`
		args = append(args, status)
	}

	query += ` ORDER BY c.created_at DESC, c.id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// DecideClaim moves a pending claim to status. Only a claim that is still
// pending is updated; a decided claim yields an invalid state error and is
// left untouched.
func DecideClaim(ctx context.Context, q DBTX, id int64, status, admin, note string, at time.Time) (*model.Claim, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE claims SET status = ?, admin = ?, decision_note = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		status, admin, nullString(note), utc(at), id,
	)
	if err != nil {
		return nil, fmt.Errorf("deciding claim: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return nil, err
	}

	c, err := GetClaim(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("claim %d not found", id)
	}
	if n == 0 {
		return nil, apperr.InvalidState("claim %d is already %s", id, c.Status)
	}
	return c, nil
}

func scanClaim(row scanner) (*model.Claim, error) {
	c := &model.Claim{}
	var message, admin, note, itemName, itemImage sql.NullString
	err := row.Scan(&c.ID, &c.ItemID, &c.ReportID, &c.Student, &message, &c.Status,
		&admin, &note, &c.CreatedAt, &c.UpdatedAt, &itemName, &itemImage)
	if err != nil {
		return nil, err
	}
	c.Message = message.String
	c.Admin = admin.String
	c.DecisionNote = note.String
	c.ItemName = itemName.String
	c.ItemImage = itemImage.String
	return c, nil
}
