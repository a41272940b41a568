package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const stateColumns = `instance_id, widget_id, x, y, width, height, is_running, last_active, permissions`

// SaveState upserts the record for an instance.
func (s *Store) SaveState(ctx context.Context, st types.PersistedWidgetState) error {
	perms, err := sonic.Marshal(st.Permissions)
	if err != nil {
		return storageErr(err, "encode permissions for %s", st.WidgetID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO widget_state (`+stateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			widget_id = excluded.widget_id,
			x = excluded.x,
			y = excluded.y,
			width = excluded.width,
			height = excluded.height,
			is_running = excluded.is_running,
			last_active = excluded.last_active,
			permissions = excluded.permissions`,
		st.InstanceID, st.WidgetID,
		st.Position.X, st.Position.Y, st.Size.Width, st.Size.Height,
		boolInt(st.IsRunning), st.LastActive.UnixMilli(), string(perms),
	)
	return storageErr(err, "save state for %s", st.WidgetID)
}

// GetState returns the record for an instance.
func (s *Store) GetState(ctx context.Context, instanceID string) (*types.PersistedWidgetState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stateColumns+` FROM widget_state WHERE instance_id = ?`, instanceID)
	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("no state for instance %s", instanceID)
	}
	if err != nil {
		return nil, storageErr(err, "get state %s", instanceID)
	}
	return st, nil
}

// LatestForWidget returns the most recently active record for a widget.
func (s *Store) LatestForWidget(ctx context.Context, widgetID string) (*types.PersistedWidgetState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+stateColumns+` FROM widget_state
		WHERE widget_id = ?
		ORDER BY last_active DESC, instance_id DESC
		LIMIT 1`, widgetID)
	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("no state for widget %s", widgetID)
	}
	if err != nil {
		return nil, storageErr(err, "latest state for %s", widgetID)
	}
	return st, nil
}

// ListStates returns all records, optionally only running ones, oldest first.
func (s *Store) ListStates(ctx context.Context, runningOnly bool) ([]types.PersistedWidgetState, error) {
	query := `SELECT ` + stateColumns + ` FROM widget_state`
	if runningOnly {
		query += ` WHERE is_running = 1`
	}
	query += ` ORDER BY last_active ASC, instance_id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr(err, "list states")
	}
	defer rows.Close()

	var out []types.PersistedWidgetState
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, storageErr(err, "scan state")
		}
		out = append(out, *st)
	}
	return out, storageErr(rows.Err(), "list states")
}

// DeleteState removes the record for an instance. Missing records are ignored.
func (s *Store) DeleteState(ctx context.Context, instanceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM widget_state WHERE instance_id = ?`, instanceID)
	return storageErr(err, "delete state %s", instanceID)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row scanner) (*types.PersistedWidgetState, error) {
	var (
		st         types.PersistedWidgetState
		running    int
		lastActive int64
		perms      string
	)
	if err := row.Scan(
		&st.InstanceID, &st.WidgetID,
		&st.Position.X, &st.Position.Y, &st.Size.Width, &st.Size.Height,
		&running, &lastActive, &perms,
	); err != nil {
		return nil, err
	}
	st.IsRunning = running != 0
	st.LastActive = time.UnixMilli(lastActive).UTC()
	if err := sonic.UnmarshalString(perms, &st.Permissions); err != nil {
		return nil, err
	}
	return &st, nil
}
