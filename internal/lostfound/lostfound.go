// Package lostfound implements the registry workflows: registering found
// items, filing lost reports with automatic matching, resale, and the claim
// and notification flows around them.
package lostfound

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

// DefaultAdminRecipient receives claim requests unless configured otherwise.
const DefaultAdminRecipient = "admin"

// DefaultCollectionPoint is named in claim acceptance notifications.
const DefaultCollectionPoint = "the lost and found office"

// Images stores item photos and returns references to them.
type Images interface {
	Put(ctx context.Context, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Notifier records notification intents and delivers them.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
	Drain(ctx context.Context) int
}

// Registry runs the lost and found workflows against the record store.
type Registry struct {
	DB       *sql.DB
	Images   Images
	Notifier Notifier

	AdminRecipient  string
	CollectionPoint string
	// HoldingPeriod is how long a found item is kept before it may be
	// offered for resale.
	HoldingPeriod time.Duration
	Now           func() time.Time
}

// New returns a registry with default settings.
func New(db *sql.DB, images Images, notifier Notifier) *Registry {
	return &Registry{
		DB:              db,
		Images:          images,
		Notifier:        notifier,
		AdminRecipient:  DefaultAdminRecipient,
		CollectionPoint: DefaultCollectionPoint,
		Now:             time.Now,
	}
}

func (r *Registry) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// flush delivers intents recorded by the operation that just finished, so
// callers see them without waiting for the background dispatcher.
func (r *Registry) flush(ctx context.Context) {
	if r.Notifier != nil {
		r.Notifier.Drain(ctx)
	}
}

func (r *Registry) deleteImage(ctx context.Context, ref string) {
	if ref == "" || r.Images == nil {
		return
	}
	if err := r.Images.Delete(ctx, ref); err != nil {
		slog.Warn("deleting image", "image", ref, "error", err)
	}
}
