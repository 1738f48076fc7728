package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('admin', 'staff', 'student')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id              INTEGER PRIMARY KEY,
    name            TEXT NOT NULL CHECK (name <> ''),
    description     TEXT,
    category        TEXT,
    brand           TEXT,
    model_no        TEXT,
    colour          TEXT,
    identifications TEXT,
    location        TEXT,
    lost_date       TEXT,
    image_path      TEXT,
    reported_by     TEXT,
    is_admin_item   INTEGER NOT NULL DEFAULT 0,
    status          TEXT DEFAULT 'available' CHECK (status IS NULL OR status IN ('available', 'resale')),
    resale_price    REAL,
    resale_date     DATETIME,
    claimed_by      TEXT,
    claimed_at      DATETIME,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK ((claimed_by IS NULL) = (claimed_at IS NULL)),
    CHECK ((resale_price IS NULL) = (resale_date IS NULL)),
    CHECK ((status = 'resale') = (resale_price IS NOT NULL)),
    CHECK (reported_by IS NULL OR status IS NULL OR status = 'available')
);

CREATE TABLE IF NOT EXISTS claims (
    id            INTEGER PRIMARY KEY,
    item_id       INTEGER REFERENCES items(id) ON DELETE SET NULL,
    report_id     INTEGER REFERENCES items(id) ON DELETE SET NULL,
    student       TEXT NOT NULL,
    message       TEXT,
    status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
    admin         TEXT,
    decision_note TEXT,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);

CREATE TABLE IF NOT EXISTS notifications (
    id         INTEGER PRIMARY KEY,
    username   TEXT NOT NULL,
    message    TEXT NOT NULL,
    type       TEXT NOT NULL DEFAULT 'info',
    payload    TEXT,
    read       INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_username ON notifications(username, created_at);

CREATE TABLE IF NOT EXISTS notification_outbox (
    id         INTEGER PRIMARY KEY,
    username   TEXT NOT NULL,
    message    TEXT NOT NULL,
    type       TEXT NOT NULL,
    payload    TEXT,
    attempts   INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
