package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
)

// SettingJWTSecret holds the key identity tokens are signed with.
const SettingJWTSecret = "jwt_secret"

// Setting returns the value stored under key. ok is false if it is unset.
func Setting(ctx context.Context, q DBTX, key string) (value string, ok bool, err error) {
	err = q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, true, nil
}

// EnsureSetting returns the value stored under key, storing the one made by
// generate if there is none yet. When two processes race, both get the value
// that was written first.
func EnsureSetting(ctx context.Context, q DBTX, key string, generate func() (string, error)) (string, error) {
	if value, ok, err := Setting(ctx, q, key); err != nil || ok {
		return value, err
	}

	candidate, err := generate()
	if err != nil {
		return "", fmt.Errorf("generating setting %s: %w", key, err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing setting %s: %w", key, err)
	}

	value, _, err := Setting(ctx, q, key)
	return value, err
}

// JWTSecret returns the token signing key, generating a random 256-bit key
// on first use.
func JWTSecret(ctx context.Context, q DBTX) (string, error) {
	return EnsureSetting(ctx, q, SettingJWTSecret, randomHex)
}

func randomHex() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
