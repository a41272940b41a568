package state

import (
	"context"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// Launcher relaunches a widget at an explicit placement
type Launcher interface {
	LaunchAt(ctx context.Context, widgetID string, pos types.Position, size types.Size) (string, error)
}

// Catalog reports whether a widget is still installed
type Catalog interface {
	Has(widgetID string) bool
}

// RestoreResult summarizes a restore pass
type RestoreResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RestoreAll relaunches every record still flagged running. It runs once;
// later calls return an empty result. Failures are logged per widget and
// never abort the pass.
func (m *Manager) RestoreAll(ctx context.Context, launcher Launcher, catalog Catalog) (RestoreResult, error) {
	var res RestoreResult
	if !m.restored.CompareAndSwap(false, true) {
		return res, nil
	}

	settings, err := m.Settings(ctx)
	if err != nil {
		m.logger.Warn("Settings unavailable, using defaults", zap.Error(err))
		settings = m.cfg.Defaults
	}
	if !settings.AutoRestore {
		m.logger.Info("Auto restore disabled, keeping records")
		return res, nil
	}

	records, err := m.store.ListStates(ctx, true)
	if err != nil {
		return res, err
	}

	for _, rec := range records {
		log := m.logger.With(logging.Widget(rec.WidgetID), logging.Instance(rec.InstanceID))

		if !catalog.Has(rec.WidgetID) {
			log.Warn("Skipping restore, widget no longer installed")
			res.Skipped++
			continue
		}

		newID, err := launcher.LaunchAt(ctx, rec.WidgetID, rec.Position, rec.Size)
		if err != nil {
			log.Warn("Restore launch failed", zap.Error(err))
			res.Failed++
			continue
		}

		if err := m.store.DeleteState(ctx, rec.InstanceID); err != nil {
			log.Warn("Failed to remove superseded record", zap.Error(err))
		}
		log.Info("Widget restored", zap.String("new_instance_id", newID))
		res.Restored++
	}

	m.logger.Info("Restore complete",
		zap.Int("restored", res.Restored),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}
