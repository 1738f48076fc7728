package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/model"
)

const itemColumns = `id, name, description, category, brand, model_no, colour, identifications,
	location, lost_date, image_path, reported_by, is_admin_item, status,
	resale_price, resale_date, claimed_by, claimed_at, created_at`

// CreateItem inserts an item. A non-empty reportedBy makes it a lost report.
func CreateItem(ctx context.Context, q DBTX, a model.ItemAttrs, reportedBy string, adminItem bool, createdAt time.Time) (*model.Item, error) {
	if strings.TrimSpace(a.Name) == "" {
		return nil, apperr.Validation("name is required")
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO items (name, description, category, brand, model_no, colour, identifications,
		                    location, lost_date, image_path, reported_by, is_admin_item, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, nullString(a.Description), nullString(a.Category), nullString(a.Brand),
		nullString(a.ModelNo), nullString(a.Colour), nullString(a.Identifications),
		nullString(a.Location), nullString(a.LostDate), nullString(a.ImagePath),
		nullString(reportedBy), adminItem, model.ItemStatusAvailable, utc(createdAt),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, q DBTX, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns items newest first, narrowed by filter.
func ListItems(ctx context.Context, q DBTX, filter model.ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	switch filter.View {
	case model.ViewAll:
	case model.ViewFound:
		query += ` AND reported_by IS NULL AND claimed_by IS NULL AND (status IS NULL OR status = 'available')`
	case model.ViewReports:
		query += ` AND reported_by IS NOT NULL AND claimed_by IS NULL`
	case model.ViewResale:
		query += ` AND status = 'resale' AND claimed_by IS NULL`
	case model.ViewClaimed:
		query += ` AND reported_by IS NULL AND claimed_by IS NOT NULL`
	default:
		return nil, apperr.Validation("unknown item view %q", filter.View)
	}

	if filter.ReportedBy != "" {
		query += ` AND reported_by = ?`
		args = append(args, filter.ReportedBy)
	}

	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// UpdateItem applies a partial update of descriptive fields and returns the
// item before and after the change. Lifecycle fields are never touched here.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, patch model.ItemPatch) (before, after *model.Item, err error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, nil, apperr.Validation("name cannot be empty")
	}

	err = InTx(ctx, db, func(tx *sql.Tx) error {
		before, err = GetItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if before == nil {
			return apperr.NotFound("item %d not found", id)
		}

		u := patch.Apply(*before)
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET name = ?, description = ?, category = ?, brand = ?, model_no = ?,
			        colour = ?, identifications = ?, location = ?, lost_date = ?, image_path = ?
			 WHERE id = ?`,
			u.Name, nullString(u.Description), nullString(u.Category), nullString(u.Brand),
			nullString(u.ModelNo), nullString(u.Colour), nullString(u.Identifications),
			nullString(u.Location), nullString(u.LostDate), nullString(u.ImagePath), id,
		)
		if err != nil {
			return fmt.Errorf("updating item: %w", err)
		}

		after, err = GetItem(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// DeleteItem removes an item and returns the deleted row so the caller can
// clean up its image. Claims keep their history with item_id cleared.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	var item *model.Item
	err := InTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		item, err = GetItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return apperr.NotFound("item %d not found", id)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// MoveToResale offers an unclaimed found item for sale. The state check and
// the write are one statement, so concurrent callers cannot both succeed.
func MoveToResale(ctx context.Context, q DBTX, id int64, price float64, at time.Time) (*model.Item, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET status = 'resale', resale_price = ?, resale_date = ?
		 WHERE id = ? AND reported_by IS NULL AND claimed_by IS NULL
		   AND (status IS NULL OR status = 'available')`,
		price, utc(at), id,
	)
	if err != nil {
		return nil, fmt.Errorf("moving item to resale: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return nil, err
	}

	item, err := GetItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return item, nil
	}

	switch {
	case item == nil:
		return nil, apperr.NotFound("item %d not found", id)
	case item.Kind() == model.KindReport:
		return nil, apperr.InvalidState("lost reports cannot be moved to resale")
	case item.State() == model.StateClaimed:
		return nil, apperr.InvalidState("item %d is already claimed by %s", id, item.ClaimedBy)
	case item.State() == model.StateResale:
		return nil, apperr.InvalidState("item %d is already in resale", id)
	default:
		return nil, apperr.InvalidState("item %d is not available for resale", id)
	}
}

// MarkClaimed records that a found item was handed to claimant. Claiming an
// item twice is a bug in the caller and fails instead of overwriting.
func MarkClaimed(ctx context.Context, q DBTX, id int64, claimant string, at time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET claimed_by = ?, claimed_at = ?
		 WHERE id = ? AND reported_by IS NULL AND claimed_by IS NULL`,
		claimant, utc(at), id,
	)
	if err != nil {
		return fmt.Errorf("marking item claimed: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	item, err := GetItem(ctx, q, id)
	if err != nil {
		return err
	}
	switch {
	case item == nil:
		return apperr.NotFound("item %d no longer exists", id)
	case item.Kind() == model.KindReport:
		return apperr.InvalidState("item %d is a lost report, not a found item", id)
	default:
		return apperr.InvalidState("item %d is already claimed by %s", id, item.ClaimedBy)
	}
}

// ResolveReport marks a lost report as resolved by a handed-back item. Reports
// that are gone or already resolved are left alone.
func ResolveReport(ctx context.Context, q DBTX, reportID int64, student string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET claimed_by = ?, claimed_at = ?
		 WHERE id = ? AND reported_by IS NOT NULL AND claimed_by IS NULL`,
		student, utc(at), reportID,
	)
	if err != nil {
		return fmt.Errorf("resolving report: %w", err)
	}
	return nil
}

func scanItem(row scanner) (*model.Item, error) {
	item := &model.Item{}
	var description, category, brand, modelNo, colour, identifications sql.NullString
	var location, lostDate, imagePath, reportedBy, status, claimedBy sql.NullString

	err := row.Scan(&item.ID, &item.Name, &description, &category, &brand, &modelNo, &colour,
		&identifications, &location, &lostDate, &imagePath, &reportedBy, &item.IsAdminItem,
		&status, &item.ResalePrice, &item.ResaleDate, &claimedBy, &item.ClaimedAt, &item.CreatedAt)
	if err != nil {
		return nil, err
	}

	item.Description = description.String
	item.Category = category.String
	item.Brand = brand.String
	item.ModelNo = modelNo.String
	item.Colour = colour.String
	item.Identifications = identifications.String
	item.Location = location.String
	item.LostDate = lostDate.String
	item.ImagePath = imagePath.String
	item.ReportedBy = reportedBy.String
	item.ClaimedBy = claimedBy.String
	item.Status = status.String
	if item.Status == "" {
		item.Status = model.ItemStatusAvailable
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
