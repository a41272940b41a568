package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/registry"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// Supervisor manages live widget instances
type Supervisor interface {
	Launch(ctx context.Context, widgetID string) (string, error)
	Close(ctx context.Context, instanceID string) error
	Move(ctx context.Context, instanceID string, pos types.Position) error
	Resize(ctx context.Context, instanceID string, size types.Size) error
	ReportCrash(instanceID, reason string) error
	Dispatch(ctx context.Context, instanceID, event string, payload interface{}) (int, error)
	Caller(instanceID string) (types.Caller, error)
	Get(instanceID string) (types.WidgetInstance, error)
	List() []types.WidgetInstance
	Stats() types.Stats
	SetCapacity(n int) error
}

// Catalog lists installed widgets
type Catalog interface {
	List() []*types.WidgetDescriptor
	Rescan(ctx context.Context) (*registry.ScanResult, error)
	Rejected() []registry.Rejection
	Stats() types.RegistryStats
}

// Broker handles capability requests
type Broker interface {
	Handle(ctx context.Context, caller types.Caller, req types.Request) types.Response
	Services() []types.Service
}

// Permissions manages stored permission decisions
type Permissions interface {
	Revoke(ctx context.Context, widgetID string) error
}

// Settings reads and updates global host settings
type Settings interface {
	Settings(ctx context.Context) (types.Settings, error)
	UpdateSettings(ctx context.Context, patch types.SettingsPatch) (types.Settings, error)
}

// Deps are the domain services the HTTP surface exposes
type Deps struct {
	Supervisor  Supervisor
	Catalog     Catalog
	Broker      Broker
	Permissions Permissions
	Settings    Settings
}

// Handlers contains all HTTP handlers
type Handlers struct {
	Deps
	logger  *zap.Logger
	started time.Time
	version string
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps, version string, logger *zap.Logger) *Handlers {
	return &Handlers{
		Deps:    deps,
		logger:  logging.OrNop(logger),
		started: time.Now(),
		version: version,
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/widgets", h.ListWidgets)
	r.POST("/widgets/rescan", h.Rescan)
	r.POST("/widgets/:id/launch", h.Launch)

	r.GET("/instances", h.ListInstances)
	r.GET("/instances/:id", h.GetInstance)
	r.DELETE("/instances/:id", h.CloseInstance)
	r.POST("/instances/:id/bounds", h.UpdateBounds)
	r.POST("/instances/:id/crash", h.ReportCrash)
	r.POST("/instances/:id/events", h.DispatchEvent)
	r.POST("/instances/:id/request", h.Request)

	r.GET("/capabilities", h.ListCapabilities)

	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)

	r.DELETE("/permissions/:widget", h.RevokePermissions)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "widgethost",
		"version": h.version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"supervisor": h.Supervisor.Stats(),
		"registry":   h.Catalog.Stats(),
	})
}
