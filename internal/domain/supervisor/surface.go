package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/id"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// Surface is the window backing one instance
type Surface interface {
	Handle() string
	SetBounds(pos types.Position, size types.Size) error
	// Fade animates visibility over d. It must return once ctx is done.
	Fade(ctx context.Context, visible bool, d time.Duration) error
	Close() error
}

// SurfaceFactory creates the surface for a new instance
type SurfaceFactory func(ctx context.Context, inst types.WidgetInstance, desc *types.WidgetDescriptor) (Surface, error)

// VirtualSurface is a headless surface. The presentation layer renders it
// from lifecycle events.
type VirtualSurface struct {
	handle string

	mu       sync.Mutex
	position types.Position
	size     types.Size
	visible  bool
	closed   bool
}

// NewVirtualSurface creates a headless surface with the given handle
func NewVirtualSurface(handle string) *VirtualSurface {
	return &VirtualSurface{handle: handle}
}

// VirtualSurfaces is the default factory
func VirtualSurfaces(context.Context, types.WidgetInstance, *types.WidgetDescriptor) (Surface, error) {
	return NewVirtualSurface(id.NewWindowHandle().String()), nil
}

// Handle returns the window handle
func (s *VirtualSurface) Handle() string {
	return s.handle
}

// SetBounds moves and resizes the surface
func (s *VirtualSurface) SetBounds(pos types.Position, size types.Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.New(errs.KindNotFound, "surface %s is closed", s.handle)
	}
	s.position = pos
	s.size = size
	return nil
}

// Fade switches visibility at once
func (s *VirtualSurface) Fade(ctx context.Context, visible bool, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.New(errs.KindNotFound, "surface %s is closed", s.handle)
	}
	s.visible = visible
	return nil
}

// Close releases the surface. It is safe to call more than once.
func (s *VirtualSurface) Close() error {
	s.mu.Lock()
	s.closed = true
	s.visible = false
	s.mu.Unlock()
	return nil
}

// Bounds returns the current placement
func (s *VirtualSurface) Bounds() (types.Position, types.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.size
}

// Visible reports whether the surface is shown
func (s *VirtualSurface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Closed reports whether Close was called
func (s *VirtualSurface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
