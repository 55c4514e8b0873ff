package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
)

// KVRepository is a key-value store with per-key expiration on top of SQLite
type KVRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewKVRepository creates a new key-value repository on the given connection
func NewKVRepository(db *sqlx.DB) *KVRepository {
	return &KVRepository{db: db, now: time.Now}
}

// SetClock replaces the clock used for expiration
func (r *KVRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Get retrieves a value, returns ErrNotFound if the key is missing or expired
func (r *KVRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value,
		"SELECT value FROM kv WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)",
		key, r.now().UnixMilli())
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Put stores a value, replacing any previous one. Zero ttl means the key never expires.
func (r *KVRepository) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: r.now().Add(ttl).UnixMilli(), Valid: true}
	}

	return r.retry(ctx, func() error {
		query := `
			INSERT INTO kv (key, value, expires_at, updated_at) VALUES (?, ?, ?, datetime('now'))
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				expires_at = excluded.expires_at,
				updated_at = excluded.updated_at
		`
		if _, err := r.db.ExecContext(ctx, query, key, value, expiresAt); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("put %s: %w", key, err)}
		}
		return nil
	})
}

// Delete removes a key, missing keys are not an error
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	return r.retry(ctx, func() error {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("delete %s: %w", key, err)}
		}
		return nil
	})
}

// DeleteExpired removes all expired keys and returns how many were removed
func (r *KVRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?", r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// retry runs fn with backoff while it fails on sqlite locks, critical errors stop it at once
func (r *KVRepository) retry(ctx context.Context, fn func() error) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, fn, errCritical)
}

// Ping verifies the database connection
func (r *KVRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection
func (r *KVRepository) Close() error {
	return r.db.Close()
}
