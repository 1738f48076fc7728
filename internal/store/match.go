package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
)

// MatchLimit caps the number of candidates returned for one report.
const MatchLimit = 20

// patternStripper removes characters that LIKE treats as wildcards or escapes.
var patternStripper = strings.NewReplacer("%", "", "_", "", `\`, "")

// FindCandidates returns unclaimed found items where any of category, brand,
// colour, name or location contains the corresponding query field,
// case-insensitively. Newest first, at most limit rows.
func FindCandidates(ctx context.Context, q DBTX, query model.MatchQuery, limit int) ([]model.Item, error) {
	if limit <= 0 || limit > MatchLimit {
		limit = MatchLimit
	}

	fields := []struct {
		column string
		value  string
	}{
		{"category", query.Category},
		{"brand", query.Brand},
		{"colour", query.Colour},
		{"name", query.Name},
		{"location", query.Location},
	}

	var clauses []string
	var args []any
	for _, f := range fields {
		term := sanitizeTerm(f.value)
		if term == "" {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s(%s) LIKE %s(?)", db.CaseFold, f.column, db.CaseFold))
		args = append(args, "%"+term+"%")
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	sqlQuery := `SELECT ` + itemColumns + ` FROM items
	             WHERE claimed_by IS NULL AND reported_by IS NULL
	               AND (` + strings.Join(clauses, " OR ") + `)
	             ORDER BY created_at DESC, id DESC
	             LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("finding candidates: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// sanitizeTerm strips pattern characters so callers cannot widen a match
// beyond a plain substring search. Folding happens in SQL on both sides.
func sanitizeTerm(s string) string {
	return strings.TrimSpace(patternStripper.Replace(s))
}
