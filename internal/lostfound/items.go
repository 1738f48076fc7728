package lostfound

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// findCandidates is swapped in tests to simulate store failures.
var findCandidates = store.FindCandidates

// Report is the result of filing a lost report.
type Report struct {
	Item       *model.Item `json:"item"`
	MatchCount int         `json:"match_count"`
	MatchedIDs []int64     `json:"matched_ids"`
}

// RegisterFoundItem records an item handed in to staff. image may be nil.
func (r *Registry) RegisterFoundItem(ctx context.Context, attrs model.ItemAttrs, image io.Reader) (*model.Item, error) {
	if strings.TrimSpace(attrs.Name) == "" {
		return nil, apperr.Validation("name is required")
	}

	item, err := r.createWithImage(ctx, attrs, image, "", true, nil)
	if err != nil {
		return nil, err
	}

	slog.Info("found item registered", "item_id", item.ID, "name", item.Name)
	return item, nil
}

// ReportLost records a student's lost report and notifies the reporter of
// every found item that may be theirs. The report and its candidate lookup
// commit together, so a failed lookup leaves nothing behind. Notification
// failures do not fail the report.
func (r *Registry) ReportLost(ctx context.Context, attrs model.ItemAttrs, reporter string, image io.Reader) (*Report, error) {
	if strings.TrimSpace(attrs.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if strings.TrimSpace(reporter) == "" {
		return nil, apperr.Validation("reporter is required")
	}

	var candidates []model.Item
	item, err := r.createWithImage(ctx, attrs, image, reporter, false, func(tx *sql.Tx, _ *model.Item) error {
		var err error
		candidates, err = findCandidates(ctx, tx, model.QueryFrom(attrs), store.MatchLimit)
		return err
	})
	if err != nil {
		return nil, err
	}

	report := &Report{Item: item, MatchedIDs: []int64{}}
	for _, c := range candidates {
		report.MatchedIDs = append(report.MatchedIDs, c.ID)
		if r.Notifier == nil {
			continue
		}
		r.Notifier.Notify(ctx, model.Notification{
			Username: reporter,
			Message:  "A found item \"" + c.Name + "\" may match your lost " + item.Name,
			Type:     model.NotificationMatch,
			Payload:  model.Payload(map[string]any{"item_id": c.ID, "report_id": item.ID}),
		})
	}
	report.MatchCount = len(report.MatchedIDs)
	r.flush(ctx)

	slog.Info("lost report filed", "item_id", item.ID, "reporter", reporter, "matches", report.MatchCount)
	return report, nil
}

// createWithImage stores the image and inserts the item. then, if set, runs in
// the same transaction; its failure rolls back the item and removes the image.
func (r *Registry) createWithImage(ctx context.Context, attrs model.ItemAttrs, image io.Reader, reporter string, adminItem bool, then func(*sql.Tx, *model.Item) error) (*model.Item, error) {
	if image != nil {
		ref, err := r.putImage(ctx, image)
		if err != nil {
			return nil, err
		}
		attrs.ImagePath = ref
	}

	var item *model.Item
	err := store.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		item, err = store.CreateItem(ctx, tx, attrs, reporter, adminItem, r.now())
		if err != nil || then == nil {
			return err
		}
		return then(tx, item)
	})
	if err != nil {
		r.deleteImage(ctx, attrs.ImagePath)
		return nil, err
	}
	return item, nil
}

func (r *Registry) putImage(ctx context.Context, image io.Reader) (string, error) {
	if r.Images == nil {
		return "", apperr.Validation("image uploads are not enabled")
	}
	return r.Images.Put(ctx, image)
}

// GetItem returns an item by ID.
func (r *Registry) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, r.DB, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("item %d not found", id)
	}
	return item, nil
}

// ListItems returns the items in a view, newest first.
func (r *Registry) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, error) {
	items, err := store.ListItems(ctx, r.DB, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// UpdateItem changes descriptive fields and optionally replaces the photo.
// The new photo is stored before the record changes; the old one is removed
// afterwards on a best-effort basis.
func (r *Registry) UpdateItem(ctx context.Context, id int64, patch model.ItemPatch, image io.Reader) (*model.Item, error) {
	var newRef string
	if image != nil {
		ref, err := r.putImage(ctx, image)
		if err != nil {
			return nil, err
		}
		newRef = ref
		patch.ImagePath = &newRef
	}

	before, after, err := store.UpdateItem(ctx, r.DB, id, patch)
	if err != nil {
		r.deleteImage(ctx, newRef)
		return nil, err
	}

	if before.ImagePath != after.ImagePath {
		r.deleteImage(ctx, before.ImagePath)
	}

	slog.Info("item updated", "item_id", id)
	return after, nil
}

// DeleteItem removes an item and then its photo. Claims on the item are kept.
func (r *Registry) DeleteItem(ctx context.Context, id int64) error {
	item, err := store.DeleteItem(ctx, r.DB, id)
	if err != nil {
		return err
	}

	r.deleteImage(ctx, item.ImagePath)

	slog.Info("item deleted", "item_id", id)
	return nil
}

// MoveToResale offers an unclaimed found item for sale at price.
func (r *Registry) MoveToResale(ctx context.Context, id int64, price float64) (*model.Item, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, apperr.Validation("price must be a positive number")
	}

	now := r.now()
	if r.HoldingPeriod > 0 {
		item, err := r.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if item.Kind() == model.KindFound && item.State() == model.StateAvailable {
			if until := item.CreatedAt.Add(r.HoldingPeriod); now.Before(until) {
				return nil, apperr.InvalidState("item %d is still in its holding period, resale possible %s",
					id, humanize.RelTime(until, now, "ago", "from now"))
			}
		}
	}

	item, err := store.MoveToResale(ctx, r.DB, id, price, now)
	if err != nil {
		return nil, err
	}

	slog.Info("item moved to resale", "item_id", id, "price", price)
	return item, nil
}
