package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// Write reasons reported to metrics
const (
	reasonLaunch   = "launch"
	reasonDebounce = "debounce"
	reasonClose    = "close"
	reasonShutdown = "shutdown"
)

// Store is the durable backing of the persistence layer
type Store interface {
	SaveState(ctx context.Context, st types.PersistedWidgetState) error
	LatestForWidget(ctx context.Context, widgetID string) (*types.PersistedWidgetState, error)
	ListStates(ctx context.Context, runningOnly bool) ([]types.PersistedWidgetState, error)
	DeleteState(ctx context.Context, instanceID string) error
	Settings(ctx context.Context, defaults types.Settings) (types.Settings, error)
	SaveSettings(ctx context.Context, settings types.Settings) error
}

// Config defines persistence configuration
type Config struct {
	Debounce     time.Duration
	WriteTimeout time.Duration
	Defaults     types.Settings
	Metrics      *monitoring.Metrics
}

// DefaultConfig returns a 500ms debounce with auto restore on and 10 widgets
func DefaultConfig() Config {
	return Config{
		Debounce:     500 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Defaults:     types.Settings{AutoRestore: true, MaxWidgets: 10},
	}
}

type record struct {
	// writeMu serializes durable writes for the instance
	writeMu sync.Mutex

	// guarded by Manager.mu
	state types.PersistedWidgetState
	timer *time.Timer
	final bool
}

// Manager coalesces and persists per-instance widget state
type Manager struct {
	store  Store
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	records map[string]*record
	closed  bool
	pending sync.WaitGroup

	settingsMu sync.Mutex
	restored   atomic.Bool
}

// NewManager creates a persistence layer over store
func NewManager(store Store, cfg Config, logger *zap.Logger) *Manager {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.Defaults == (types.Settings{}) {
		cfg.Defaults = def.Defaults
	} else if cfg.Defaults.MaxWidgets <= 0 {
		cfg.Defaults.MaxWidgets = def.Defaults.MaxWidgets
	}
	return &Manager{
		store:   store,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
		records: make(map[string]*record),
	}
}

// Track writes the running record for a new instance
func (m *Manager) Track(ctx context.Context, inst types.WidgetInstance) error {
	rec := &record{state: types.StateOf(inst, true, time.Now())}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.records[inst.InstanceID] = rec
	st := rec.state
	m.mu.Unlock()

	rec.writeMu.Lock()
	defer rec.writeMu.Unlock()
	return m.write(ctx, st, reasonLaunch)
}

// RecordPosition schedules a coalesced write of the new position
func (m *Manager) RecordPosition(instanceID string, pos types.Position) {
	m.update(instanceID, func(st *types.PersistedWidgetState) { st.Position = pos })
}

// RecordSize schedules a coalesced write of the new size
func (m *Manager) RecordSize(instanceID string, size types.Size) {
	m.update(instanceID, func(st *types.PersistedWidgetState) { st.Size = size })
}

// RecordPermissions schedules a coalesced write of the effective permission set
func (m *Manager) RecordPermissions(instanceID string, set types.PermissionSet) {
	m.update(instanceID, func(st *types.PersistedWidgetState) { st.Permissions = set.Clone() })
}

func (m *Manager) update(instanceID string, apply func(*types.PersistedWidgetState)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[instanceID]
	if !ok || rec.final || m.closed {
		return
	}
	apply(&rec.state)
	rec.state.LastActive = time.Now()

	if rec.timer == nil {
		m.pending.Add(1)
		rec.timer = time.AfterFunc(m.cfg.Debounce, func() {
			defer m.pending.Done()
			m.flush(rec)
		})
	}
}

// flush performs a debounced write unless the instance was finalized meanwhile
func (m *Manager) flush(rec *record) {
	rec.writeMu.Lock()
	defer rec.writeMu.Unlock()

	m.mu.Lock()
	rec.timer = nil
	if rec.final {
		m.mu.Unlock()
		return
	}
	st := rec.state
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.WriteTimeout)
	defer cancel()
	_ = m.write(ctx, st, reasonDebounce)
}

// SaveOnClose cancels any pending write and flushes the final record now.
// running is false for close and crash, true for host shutdown.
func (m *Manager) SaveOnClose(ctx context.Context, instanceID string, running bool) error {
	m.mu.Lock()
	rec, ok := m.records[instanceID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.records, instanceID)
	rec.final = true
	if rec.timer != nil && rec.timer.Stop() {
		rec.timer = nil
		m.pending.Done()
	}
	rec.state.IsRunning = running
	rec.state.LastActive = time.Now()
	st := rec.state
	m.mu.Unlock()

	reason := reasonClose
	if running {
		reason = reasonShutdown
	}

	rec.writeMu.Lock()
	defer rec.writeMu.Unlock()
	return m.write(ctx, st, reason)
}

// Lookup returns the last persisted placement for a widget
func (m *Manager) Lookup(ctx context.Context, widgetID string) (*types.PersistedWidgetState, error) {
	return m.store.LatestForWidget(ctx, widgetID)
}

// Close flushes pending writes, cancels all timers and waits for in-flight
// writes. Later updates are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	var flush []*record
	for _, rec := range m.records {
		if rec.timer != nil && rec.timer.Stop() {
			rec.timer = nil
			m.pending.Done()
			flush = append(flush, rec)
		}
	}
	m.mu.Unlock()

	for _, rec := range flush {
		m.flush(rec)
	}
	m.pending.Wait()
}

func (m *Manager) write(ctx context.Context, st types.PersistedWidgetState, reason string) error {
	err := m.store.SaveState(ctx, st)
	m.cfg.Metrics.RecordStateWrite(reason, err)
	if err != nil {
		m.logger.Warn("State write failed",
			logging.Widget(st.WidgetID),
			logging.Instance(st.InstanceID),
			zap.String("reason", reason),
			zap.Error(err))
	}
	return err
}

// Settings returns the persisted global settings
func (m *Manager) Settings(ctx context.Context) (types.Settings, error) {
	return m.store.Settings(ctx, m.cfg.Defaults)
}

// UpdateSettings applies patch and persists the result
func (m *Manager) UpdateSettings(ctx context.Context, patch types.SettingsPatch) (types.Settings, error) {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()

	cur, err := m.Settings(ctx)
	if err != nil {
		return types.Settings{}, err
	}
	next := patch.Apply(cur)
	if next.MaxWidgets < 1 {
		return types.Settings{}, errs.New(errs.KindInvalidConfig, "maxWidgets must be at least 1, got %d", next.MaxWidgets)
	}
	if err := m.store.SaveSettings(ctx, next); err != nil {
		return types.Settings{}, err
	}
	m.logger.Info("Settings updated",
		zap.Bool("auto_restore", next.AutoRestore),
		zap.Int("max_widgets", next.MaxWidgets))
	return next, nil
}
