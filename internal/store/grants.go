package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Decision returns the stored decision for (widgetID, permission).
// decided is false when the user was never asked.
func (s *Store) Decision(ctx context.Context, widgetID, permission string) (granted, decided bool, err error) {
	var g int
	err = s.db.QueryRowContext(ctx,
		`SELECT granted FROM grants WHERE widget_id = ? AND permission = ?`,
		widgetID, permission,
	).Scan(&g)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, storageErr(err, "get decision %s/%s", widgetID, permission)
	}
	return g != 0, true, nil
}

// SetDecision records a grant or deny. Other permissions of the widget are untouched.
func (s *Store) SetDecision(ctx context.Context, widgetID, permission string, granted bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grants (widget_id, permission, granted, decided_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(widget_id, permission) DO UPDATE SET
			granted = excluded.granted,
			decided_at = excluded.decided_at`,
		widgetID, permission, boolInt(granted), time.Now().UnixMilli(),
	)
	return storageErr(err, "set decision %s/%s", widgetID, permission)
}

// Decisions returns every stored decision for a widget.
func (s *Store) Decisions(ctx context.Context, widgetID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT permission, granted FROM grants WHERE widget_id = ?`, widgetID)
	if err != nil {
		return nil, storageErr(err, "list decisions %s", widgetID)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			perm string
			g    int
		)
		if err := rows.Scan(&perm, &g); err != nil {
			return nil, storageErr(err, "scan decision")
		}
		out[perm] = g != 0
	}
	return out, storageErr(rows.Err(), "list decisions %s", widgetID)
}

// DeleteDecisions forgets every decision for a widget.
func (s *Store) DeleteDecisions(ctx context.Context, widgetID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE widget_id = ?`, widgetID)
	return storageErr(err, "delete decisions %s", widgetID)
}
