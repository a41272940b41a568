package registry

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// Installer fetches a widget package into the widgets directory. The
// registry only consumes what an installer leaves on disk.
type Installer interface {
	Install(ctx context.Context, source string) (widgetDir string, err error)
}

// Registry holds the descriptors of installed widgets
type Registry struct {
	dir     string
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	widgets  map[string]*types.WidgetDescriptor
	rejected []Rejection
}

// New creates an empty registry for the given widgets directory
func New(dir string, logger *zap.Logger, metrics *monitoring.Metrics) *Registry {
	return &Registry{
		dir:     dir,
		logger:  logging.OrNop(logger),
		metrics: metrics,
		widgets: make(map[string]*types.WidgetDescriptor),
	}
}

// Dir returns the widgets directory
func (r *Registry) Dir() string {
	return r.dir
}

// Rescan reloads every manifest from disk, replacing the current set
func (r *Registry) Rescan(ctx context.Context) (*ScanResult, error) {
	r.logger.Info("Scanning widgets", zap.String("dir", r.dir))

	res, err := Scan(ctx, r.dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, err, "scan %s", r.dir)
	}
	for _, rej := range res.Rejected {
		r.logger.Warn("Skipping malformed manifest", zap.String("path", rej.Path), zap.String("reason", rej.Reason))
	}

	r.mu.Lock()
	r.replace(res.Accepted)
	r.rejected = res.Rejected
	r.mu.Unlock()

	r.logger.Info("Scan complete", zap.Int("loaded", len(res.Accepted)), zap.Int("rejected", len(res.Rejected)))
	return res, nil
}

// Replace swaps the whole descriptor set
func (r *Registry) Replace(descs []*types.WidgetDescriptor) error {
	for _, d := range descs {
		if err := Validate(d); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.replace(descs)
	r.mu.Unlock()
	return nil
}

func (r *Registry) replace(descs []*types.WidgetDescriptor) {
	r.widgets = make(map[string]*types.WidgetDescriptor, len(descs))
	for _, d := range descs {
		r.widgets[d.ID] = d.Clone()
	}
	r.metrics.SetRegistryWidgets(len(r.widgets))
}

// Register adds or replaces one descriptor, typically after an install
func (r *Registry) Register(desc *types.WidgetDescriptor) error {
	if err := Validate(desc); err != nil {
		return err
	}

	r.mu.Lock()
	r.widgets[desc.ID] = desc.Clone()
	n := len(r.widgets)
	r.mu.Unlock()

	r.metrics.SetRegistryWidgets(n)
	r.logger.Info("Widget registered", logging.Widget(desc.ID), zap.String("version", desc.Version))
	return nil
}

// Install runs an installer and registers the manifest it produced
func (r *Registry) Install(ctx context.Context, inst Installer, source string) (*types.WidgetDescriptor, error) {
	dir, err := inst.Install(ctx, source)
	if err != nil {
		return nil, err
	}
	desc, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := r.Register(desc); err != nil {
		return nil, err
	}
	return desc, nil
}

// Get returns a copy of the descriptor
func (r *Registry) Get(id string) (*types.WidgetDescriptor, error) {
	r.mu.RLock()
	d, ok := r.widgets[id]
	r.mu.RUnlock()

	if !ok {
		return nil, errs.New(errs.KindNotFound, "widget %s is not installed", id)
	}
	return d.Clone(), nil
}

// Has reports whether a widget is installed
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.widgets[id]
	return ok
}

// List returns copies of all descriptors sorted by id
func (r *Registry) List() []*types.WidgetDescriptor {
	r.mu.RLock()
	out := make([]*types.WidgetDescriptor, 0, len(r.widgets))
	for _, d := range r.widgets {
		out = append(out, d.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rejected returns the manifests skipped by the last scan
func (r *Registry) Rejected() []Rejection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rejection(nil), r.rejected...)
}

// Stats returns registry statistics
func (r *Registry) Stats() types.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return types.RegistryStats{Widgets: len(r.widgets), Rejected: len(r.rejected)}
}
