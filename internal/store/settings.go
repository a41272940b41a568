package store

import (
	"context"
	"strconv"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const (
	keyAutoRestore = "autoRestore"
	keyMaxWidgets  = "maxWidgets"
)

// Settings loads global settings; keys never written keep the given defaults.
func (s *Store) Settings(ctx context.Context, defaults types.Settings) (types.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return defaults, storageErr(err, "load settings")
	}
	defer rows.Close()

	out := defaults
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return defaults, storageErr(err, "scan setting")
		}
		switch key {
		case keyAutoRestore:
			if v, err := strconv.ParseBool(value); err == nil {
				out.AutoRestore = v
			}
		case keyMaxWidgets:
			if v, err := strconv.Atoi(value); err == nil && v > 0 {
				out.MaxWidgets = v
			}
		}
	}
	return out, storageErr(rows.Err(), "load settings")
}

// SaveSettings persists every settings key in one transaction.
func (s *Store) SaveSettings(ctx context.Context, settings types.Settings) error {
	if settings.MaxWidgets < 1 {
		return errs.New(errs.KindInvalidConfig, "maxWidgets must be positive, got %d", settings.MaxWidgets)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "begin settings")
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		keyAutoRestore: strconv.FormatBool(settings.AutoRestore),
		keyMaxWidgets:  strconv.Itoa(settings.MaxWidgets),
	} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
			return storageErr(err, "save setting %s", key)
		}
	}
	return storageErr(tx.Commit(), "commit settings")
}
