package lostfound

import (
	"context"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// PreviewMatches returns the found items a report with these attributes
// would match, without recording anything.
func (r *Registry) PreviewMatches(ctx context.Context, q model.MatchQuery) ([]model.Item, error) {
	items, err := store.FindCandidates(ctx, r.DB, q, store.MatchLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}
