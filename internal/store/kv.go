package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
)

const (
	// MaxValueBytes bounds one stored value
	MaxValueBytes = 64 << 10
	// MaxKeysPerWidget bounds a widget's namespace
	MaxKeysPerWidget = 256
)

// KVGet returns the decoded value for key in the widget's namespace.
// found is false for absent keys.
func (s *Store) KVGet(ctx context.Context, widgetID, key string) (value interface{}, found bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM widget_kv WHERE widget_id = ? AND key = ?`, widgetID, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr(err, "kv get %s/%s", widgetID, key)
	}
	if err := sonic.UnmarshalString(raw, &value); err != nil {
		return nil, false, storageErr(err, "kv decode %s/%s", widgetID, key)
	}
	return value, true, nil
}

// KVSet stores value under key in the widget's namespace.
func (s *Store) KVSet(ctx context.Context, widgetID, key string, value interface{}) error {
	raw, err := sonic.MarshalString(value)
	if err != nil {
		return errs.Wrap(errs.KindInvalidConfig, err, "value for %s is not serializable", key)
	}
	if len(raw) > MaxValueBytes {
		return errs.New(errs.KindInvalidConfig, "value for %s exceeds %d bytes", key, MaxValueBytes)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "kv begin")
	}
	defer tx.Rollback()

	var exists, count int
	if err := tx.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(key = ?), 0),
			COUNT(*)
		FROM widget_kv WHERE widget_id = ?`, key, widgetID,
	).Scan(&exists, &count); err != nil {
		return storageErr(err, "kv count %s", widgetID)
	}
	if exists == 0 && count >= MaxKeysPerWidget {
		return errs.New(errs.KindStorageError, "widget %s exceeded %d stored keys", widgetID, MaxKeysPerWidget)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO widget_kv (widget_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(widget_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		widgetID, key, raw, time.Now().UnixMilli(),
	); err != nil {
		return storageErr(err, "kv set %s/%s", widgetID, key)
	}
	return storageErr(tx.Commit(), "kv commit")
}

// KVDelete removes key; it reports whether the key existed.
func (s *Store) KVDelete(ctx context.Context, widgetID, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM widget_kv WHERE widget_id = ? AND key = ?`, widgetID, key)
	if err != nil {
		return false, storageErr(err, "kv delete %s/%s", widgetID, key)
	}
	n, err := res.RowsAffected()
	return n > 0, storageErr(err, "kv delete %s/%s", widgetID, key)
}

// KVKeys lists the keys in the widget's namespace, sorted.
func (s *Store) KVKeys(ctx context.Context, widgetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM widget_kv WHERE widget_id = ? ORDER BY key`, widgetID)
	if err != nil {
		return nil, storageErr(err, "kv keys %s", widgetID)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, storageErr(err, "kv scan")
		}
		keys = append(keys, k)
	}
	return keys, storageErr(rows.Err(), "kv keys %s", widgetID)
}
