package db

import (
	"database/sql"
	"fmt"
)

// itemColumns are columns added to items after the first release. Databases
// created by older builds get them added on startup.
var itemColumns = []struct {
	name string
	decl string
}{
	{"lost_date", "TEXT"},
	{"location", "TEXT"},
	{"category", "TEXT"},
	{"brand", "TEXT"},
	{"model_no", "TEXT"},
	{"colour", "TEXT"},
	{"identifications", "TEXT"},
	{"reported_by", "TEXT"},
	{"status", "TEXT DEFAULT 'available'"},
	{"resale_price", "REAL"},
	{"resale_date", "DATETIME"},
	{"is_admin_item", "INTEGER NOT NULL DEFAULT 0"},
	{"claimed_by", "TEXT"},
	{"claimed_at", "DATETIME"},
	{"created_at", "DATETIME NOT NULL DEFAULT '1970-01-01 00:00:00'"},
}

// migrations run after the column upgrade, in order. Each must be idempotent.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_items_pool
	     ON items(created_at) WHERE reported_by IS NULL AND claimed_by IS NULL`,
}

// Migrate ensures the schema exists and upgrades older databases. Safe to run
// on every start.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	existing, err := columns(db, "items")
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for _, c := range itemColumns {
		if existing[c.name] {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE items ADD COLUMN %s %s", c.name, c.decl)); err != nil {
			return fmt.Errorf("adding column items.%s: %w", c.name, err)
		}
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}

// columns returns the set of column names of a table.
func columns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("reading table info for %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning table info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
