package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/registry"
	"github.com/GriffinCanCode/WidgetHost/internal/domain/sandbox"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/id"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const (
	fadeSlack     = 50 * time.Millisecond
	cascadeOrigin = 80
	cascadeStep   = 32
	cascadeSlots  = 8
)

// Catalog resolves installed widgets
type Catalog interface {
	Get(widgetID string) (*types.WidgetDescriptor, error)
}

// Grants derives the effective permission set of a widget
type Grants interface {
	PermissionSet(ctx context.Context, desc *types.WidgetDescriptor) (types.PermissionSet, error)
}

// Persistence records instance state
type Persistence interface {
	Track(ctx context.Context, inst types.WidgetInstance) error
	Lookup(ctx context.Context, widgetID string) (*types.PersistedWidgetState, error)
	RecordPosition(instanceID string, pos types.Position)
	RecordSize(instanceID string, size types.Size)
	RecordPermissions(instanceID string, set types.PermissionSet)
	SaveOnClose(ctx context.Context, instanceID string, running bool) error
}

// Handler answers capability requests issued from a sandbox
type Handler interface {
	Handle(ctx context.Context, caller types.Caller, req types.Request) types.Response
}

// Config defines supervisor configuration
type Config struct {
	Capacity        int
	FadeIn          time.Duration
	FadeOut         time.Duration
	FinalizeTimeout time.Duration
	// ScriptRequestTimeout bounds one host.request from a sandbox, including
	// any wait on a permission prompt
	ScriptRequestTimeout time.Duration
	Sandbox              sandbox.Config
	Surfaces             SurfaceFactory
	Metrics              *monitoring.Metrics
}

// DefaultConfig returns a 10 instance cap with 150ms fades
func DefaultConfig() Config {
	return Config{
		Capacity:             10,
		FadeIn:               150 * time.Millisecond,
		FadeOut:              150 * time.Millisecond,
		FinalizeTimeout:      5 * time.Second,
		ScriptRequestTimeout: 2 * time.Second,
		Sandbox:              sandbox.DefaultConfig(),
		Surfaces:             VirtualSurfaces,
	}
}

// Supervisor manages running widget instances
type Supervisor struct {
	catalog Catalog
	grants  Grants
	persist Persistence
	cfg     Config
	logger  *zap.Logger

	mu       sync.RWMutex
	live     map[string]*entry    // Protected by mu
	retired  map[string]struct{}  // Protected by mu
	pending  int                  // launches holding a capacity slot
	capacity int
	launched int
	crashed  int
	closed   bool
	h        Handler

	wg sync.WaitGroup

	listenMu  sync.RWMutex
	listeners []func(Event)
}

// New creates a supervisor
func New(catalog Catalog, grants Grants, persist Persistence, cfg Config, logger *zap.Logger) *Supervisor {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.FadeIn <= 0 {
		cfg.FadeIn = def.FadeIn
	}
	if cfg.FadeOut <= 0 {
		cfg.FadeOut = def.FadeOut
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = def.FinalizeTimeout
	}
	if cfg.ScriptRequestTimeout <= 0 {
		cfg.ScriptRequestTimeout = def.ScriptRequestTimeout
	}
	if cfg.Surfaces == nil {
		cfg.Surfaces = def.Surfaces
	}

	return &Supervisor{
		catalog:  catalog,
		grants:   grants,
		persist:  persist,
		cfg:      cfg,
		logger:   logging.OrNop(logger),
		live:     make(map[string]*entry),
		retired:  make(map[string]struct{}),
		capacity: cfg.Capacity,
	}
}

// SetHandler attaches the broker serving sandbox requests
func (s *Supervisor) SetHandler(h Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

func (s *Supervisor) handler() Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}

// SetCapacity changes the instance cap. Running instances above the new cap
// keep running.
func (s *Supervisor) SetCapacity(n int) error {
	if n < 1 {
		return errs.New(errs.KindInvalidConfig, "capacity must be at least 1, got %d", n)
	}
	s.mu.Lock()
	s.capacity = n
	s.mu.Unlock()
	s.logger.Info("Capacity updated", zap.Int("capacity", n))
	return nil
}

// Launch starts a widget at its last persisted placement, or at its default
// size and a cascading position
func (s *Supervisor) Launch(ctx context.Context, widgetID string) (string, error) {
	return s.launch(ctx, widgetID, nil, nil)
}

// LaunchAt starts a widget at an explicit placement
func (s *Supervisor) LaunchAt(ctx context.Context, widgetID string, pos types.Position, size types.Size) (string, error) {
	return s.launch(ctx, widgetID, &pos, &size)
}

func (s *Supervisor) launch(ctx context.Context, widgetID string, pos *types.Position, size *types.Size) (instanceID string, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = string(errs.KindOf(err))
		}
		s.cfg.Metrics.RecordLaunch(result)
	}()

	desc, err := s.catalog.Get(widgetID)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidConfig, err, "cannot launch %s", widgetID)
	}
	if err := registry.Validate(desc); err != nil {
		return "", err
	}
	if size != nil && !size.Valid() {
		return "", errs.New(errs.KindInvalidConfig, "size %dx%d must be positive", size.Width, size.Height)
	}

	var script string
	if desc.Script != "" {
		src, err := os.ReadFile(filepath.Join(desc.Dir, desc.Script))
		if err != nil {
			return "", errs.Wrap(errs.KindInvalidConfig, err, "%s: read script", widgetID)
		}
		script = string(src)
	}

	if err := s.reserve(widgetID); err != nil {
		return "", err
	}
	reserved := true
	defer func() {
		if reserved {
			s.release()
		}
	}()

	place, dims := s.placement(ctx, desc, pos, size)

	perms, err := s.grants.PermissionSet(ctx, desc)
	if err != nil {
		s.logger.Warn("Permission lookup failed, starting with none", logging.Widget(widgetID), zap.Error(err))
		perms = types.PermissionSet{}
	}

	inst := types.WidgetInstance{
		InstanceID:  s.newInstanceID(),
		WidgetID:    desc.ID,
		Position:    place,
		Size:        dims,
		Permissions: perms,
		LaunchedAt:  time.Now(),
	}

	surface, err := s.cfg.Surfaces(ctx, inst, desc)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "create surface for %s", widgetID)
	}
	inst.WindowHandle = surface.Handle()
	if err := surface.SetBounds(inst.Position, inst.Size); err != nil {
		surface.Close()
		return "", errs.Wrap(errs.KindInternal, err, "place surface for %s", widgetID)
	}

	// The record exists before the instance can be closed, so the final
	// write on close always finds it.
	if err := s.persist.Track(ctx, inst); err != nil {
		s.logger.Warn("Failed to track instance", logging.Instance(inst.InstanceID), zap.Error(err))
	}

	e := newEntry(inst, desc, surface)
	if err := s.register(e); err != nil {
		surface.Close()
		if serr := s.persist.SaveOnClose(ctx, inst.InstanceID, false); serr != nil {
			s.logger.Warn("Failed to mark rejected instance stopped", logging.Instance(inst.InstanceID), zap.Error(serr))
		}
		return "", err
	}
	reserved = false

	s.wg.Add(1)
	go s.run(e)

	fadeCtx, cancel := context.WithTimeout(ctx, s.cfg.FadeIn+fadeSlack)
	if err := surface.Fade(fadeCtx, true, s.cfg.FadeIn); err != nil {
		s.logger.Debug("Fade in failed", logging.Instance(inst.InstanceID), zap.Error(err))
	}
	cancel()

	if script != "" {
		caller := callerOf(e)
		e.post(func(ctx context.Context) error {
			rt, err := sandbox.New(s.cfg.Sandbox, caller, bridge{s: s, caller: caller}, s.logger)
			if err != nil {
				return errs.Wrap(errs.KindInstanceCrashed, err, "sandbox setup")
			}
			e.runtime = rt
			return rt.Run(ctx, desc.Script, script)
		})
	}

	s.logger.Info("Widget launched",
		logging.Widget(inst.WidgetID),
		logging.Instance(inst.InstanceID),
		zap.Int("x", inst.Position.X),
		zap.Int("y", inst.Position.Y),
		zap.Int("width", inst.Size.Width),
		zap.Int("height", inst.Size.Height))
	s.emit(EventLaunched, inst, "")
	return inst.InstanceID, nil
}

// reserve takes a capacity slot for a launch in progress
func (s *Supervisor) reserve(widgetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errs.New(errs.KindInternal, "supervisor is shut down")
	}
	if len(s.live)+s.pending >= s.capacity {
		s.logger.Warn("Launch rejected, at capacity",
			logging.Widget(widgetID),
			zap.Int("capacity", s.capacity))
		return errs.New(errs.KindCapacityExceeded, "cannot launch %s: %d of %d widgets running", widgetID, len(s.live)+s.pending, s.capacity)
	}
	s.pending++
	return nil
}

func (s *Supervisor) release() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
}

// register converts a reserved slot into a live instance
func (s *Supervisor) register(e *entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errs.New(errs.KindInternal, "supervisor is shut down")
	}
	for _, other := range s.live {
		if other.inst.WindowHandle == e.inst.WindowHandle {
			return errs.New(errs.KindInternal, "window handle %s already in use", e.inst.WindowHandle)
		}
	}
	s.pending--
	s.live[e.inst.InstanceID] = e
	s.launched++
	s.cfg.Metrics.SetInstancesActive(len(s.live))
	return nil
}

func (s *Supervisor) newInstanceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for {
		candidate := id.NewInstanceID().String()
		_, live := s.live[candidate]
		_, gone := s.retired[candidate]
		if !live && !gone {
			return candidate
		}
	}
}

// placement picks where a new instance appears
func (s *Supervisor) placement(ctx context.Context, desc *types.WidgetDescriptor, pos *types.Position, size *types.Size) (types.Position, types.Size) {
	if pos != nil && size != nil {
		return *pos, desc.Sizes.Clamp(*size)
	}

	last, err := s.persist.Lookup(ctx, desc.ID)
	switch {
	case err == nil && last.Size.Valid():
		return last.Position, desc.Sizes.Clamp(last.Size)
	case err != nil && !errs.Is(err, errs.KindNotFound):
		s.logger.Warn("Placement lookup failed, using defaults", logging.Widget(desc.ID), zap.Error(err))
	}

	s.mu.RLock()
	slot := s.launched % cascadeSlots
	s.mu.RUnlock()
	offset := cascadeOrigin + slot*cascadeStep
	return types.Position{X: offset, Y: offset}, desc.Sizes.Default
}

func (s *Supervisor) lookup(instanceID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.live[instanceID]; ok {
		return e, nil
	}
	if _, ok := s.retired[instanceID]; ok {
		return nil, errs.New(errs.KindNotFound, "instance %s is no longer running", instanceID)
	}
	return nil, errs.New(errs.KindNotFound, "unknown instance %s", instanceID)
}

// Close tears down an instance. Closing an instance that already stopped is
// a no-op; ids never issued are NotFound.
func (s *Supervisor) Close(ctx context.Context, instanceID string) error {
	e, err := s.lookup(instanceID)
	if err != nil {
		s.mu.RLock()
		_, gone := s.retired[instanceID]
		s.mu.RUnlock()
		if gone {
			return nil
		}
		return err
	}
	return s.teardown(ctx, e, outcomeClosed, "")
}

// ReportCrash tears down an instance reported as crashed or unresponsive.
// There is no automatic relaunch.
func (s *Supervisor) ReportCrash(instanceID, reason string) error {
	e, err := s.lookup(instanceID)
	if err != nil {
		s.mu.RLock()
		_, gone := s.retired[instanceID]
		s.mu.RUnlock()
		if gone {
			return nil
		}
		return err
	}
	if reason == "" {
		reason = "reported unresponsive"
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FinalizeTimeout+s.cfg.Sandbox.Timeout)
	defer cancel()
	return s.teardown(ctx, e, outcomeCrashed, reason)
}

// Move records a new position for an instance
func (s *Supervisor) Move(ctx context.Context, instanceID string, pos types.Position) error {
	e, err := s.lookup(instanceID)
	if err != nil {
		return err
	}

	var inst types.WidgetInstance
	err = e.submit(ctx, func(context.Context) error {
		s.mu.RLock()
		size := e.inst.Size
		s.mu.RUnlock()
		if err := e.surface.SetBounds(pos, size); err != nil {
			return errs.Wrap(errs.KindInternal, err, "move %s", instanceID)
		}

		s.mu.Lock()
		e.inst.Position = pos
		inst = e.inst
		s.mu.Unlock()

		s.persist.RecordPosition(instanceID, pos)
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(EventMoved, inst, "")
	return nil
}

// Resize records a new size for an instance, clamped to the widget's bounds
func (s *Supervisor) Resize(ctx context.Context, instanceID string, size types.Size) error {
	if !size.Valid() {
		return errs.New(errs.KindInvalidConfig, "size %dx%d must be positive", size.Width, size.Height)
	}
	e, err := s.lookup(instanceID)
	if err != nil {
		return err
	}
	size = e.desc.Sizes.Clamp(size)

	var inst types.WidgetInstance
	err = e.submit(ctx, func(context.Context) error {
		s.mu.RLock()
		pos := e.inst.Position
		s.mu.RUnlock()
		if err := e.surface.SetBounds(pos, size); err != nil {
			return errs.Wrap(errs.KindInternal, err, "resize %s", instanceID)
		}

		s.mu.Lock()
		e.inst.Size = size
		inst = e.inst
		s.mu.Unlock()

		s.persist.RecordSize(instanceID, size)
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(EventResized, inst, "")
	return nil
}

// Dispatch delivers a host event to the instance sandbox and returns how many
// handlers ran. A failing handler crashes the instance.
func (s *Supervisor) Dispatch(ctx context.Context, instanceID, event string, payload interface{}) (int, error) {
	if event == "" {
		return 0, errs.New(errs.KindInvalidConfig, "event name is required")
	}
	e, err := s.lookup(instanceID)
	if err != nil {
		return 0, err
	}

	var ran int
	err = e.submit(ctx, func(ctx context.Context) error {
		if e.runtime == nil {
			return nil
		}
		n, err := e.runtime.Dispatch(ctx, event, payload)
		ran = n
		return err
	})
	return ran, err
}

// RefreshPermissions recomputes the effective permission set of every live
// instance of a widget after a decision changes
func (s *Supervisor) RefreshPermissions(ctx context.Context, widgetID string) {
	s.mu.RLock()
	var targets []*entry
	for _, e := range s.live {
		if e.inst.WidgetID == widgetID {
			targets = append(targets, e)
		}
	}
	s.mu.RUnlock()

	for _, e := range targets {
		perms, err := s.grants.PermissionSet(ctx, e.desc)
		if err != nil {
			s.logger.Warn("Permission refresh failed", logging.Instance(e.inst.InstanceID), zap.Error(err))
			continue
		}

		s.mu.Lock()
		if s.live[e.inst.InstanceID] != e {
			s.mu.Unlock()
			continue
		}
		e.inst.Permissions = perms
		inst := e.inst
		s.mu.Unlock()

		s.persist.RecordPermissions(inst.InstanceID, perms)
		s.emit(EventPermissions, inst, "")
	}
}

// Caller identifies a live instance for the message broker
func (s *Supervisor) Caller(instanceID string) (types.Caller, error) {
	e, err := s.lookup(instanceID)
	if err != nil {
		return types.Caller{}, err
	}
	return callerOf(e), nil
}

func callerOf(e *entry) types.Caller {
	return types.Caller{
		InstanceID: e.inst.InstanceID,
		WidgetID:   e.desc.ID,
		WidgetName: e.desc.Label(),
		Declared:   e.desc.Permissions.Clone(),
	}
}

// Get returns a snapshot of one instance
func (s *Supervisor) Get(instanceID string) (types.WidgetInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live[instanceID]
	if !ok {
		return types.WidgetInstance{}, errs.New(errs.KindNotFound, "instance %s is not running", instanceID)
	}
	inst := e.inst
	inst.Permissions = inst.Permissions.Clone()
	return inst, nil
}

// List returns snapshots of running instances, oldest first
func (s *Supervisor) List() []types.WidgetInstance {
	s.mu.RLock()
	out := make([]types.WidgetInstance, 0, len(s.live))
	for _, e := range s.live {
		inst := e.inst
		inst.Permissions = inst.Permissions.Clone()
		out = append(out, inst)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LaunchedAt.Equal(out[j].LaunchedAt) {
			return out[i].InstanceID < out[j].InstanceID
		}
		return out[i].LaunchedAt.Before(out[j].LaunchedAt)
	})
	return out
}

// Stats returns supervisor statistics
func (s *Supervisor) Stats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Stats{
		Running:  len(s.live),
		Capacity: s.capacity,
		Launched: s.launched,
		Crashed:  s.crashed,
	}
}

// Shutdown stops every instance, keeping their records flagged running so
// they are restored on the next start, and waits for all actors
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	entries := make([]*entry, 0, len(s.live))
	for _, e := range s.live {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		s.retire(e, outcomeShutdown, "")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Supervisor stopped", zap.Int("instances", len(entries)))
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.KindInternal, ctx.Err(), "shutdown interrupted")
	}
}
