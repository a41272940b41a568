package window

import (
	"context"
	"math"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const (
	resizeSchema = `{
	"type": "object",
	"properties": {
		"width":  {"type": "number", "minimum": 100, "maximum": 2000},
		"height": {"type": "number", "minimum": 100, "maximum": 2000}
	},
	"required": ["width", "height"],
	"additionalProperties": false
}`

	moveSchema = `{
	"type": "object",
	"properties": {
		"x": {"type": "number", "minimum": -10000, "maximum": 10000},
		"y": {"type": "number", "minimum": -10000, "maximum": 10000}
	},
	"required": ["x", "y"],
	"additionalProperties": false
}`
)

// Windows is the slice of the supervisor a widget may drive for itself
type Windows interface {
	Move(ctx context.Context, instanceID string, pos types.Position) error
	Resize(ctx context.Context, instanceID string, size types.Size) error
	Close(ctx context.Context, instanceID string) error
	Get(instanceID string) (types.WidgetInstance, error)
}

// Bounds is the result of window.move and window.resize
type Bounds struct {
	Position types.Position `json:"position"`
	Size     types.Size     `json:"size"`
}

// Provider lets a widget move, resize and close its own window
type Provider struct {
	windows Windows
}

// NewProvider creates a window provider
func NewProvider(windows Windows) *Provider {
	return &Provider{windows: windows}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "window",
		Name:        "Window",
		Description: "Control the calling widget's own window",
		Category:    types.CategoryWindow,
		Capabilities: []types.Capability{
			{ID: "window.resize", Name: "Resize", Description: "resize this widget", Schema: resizeSchema},
			{ID: "window.move", Name: "Move", Description: "move this widget", Schema: moveSchema},
			{ID: "window.close", Name: "Close", Description: "close this widget"},
		},
	}
}

// Execute runs a window capability against the caller's instance
func (p *Provider) Execute(ctx context.Context, capability string, caller types.Caller, args map[string]interface{}) (interface{}, error) {
	if caller.InstanceID == "" {
		return nil, errs.New(errs.KindInvalidConfig, "window capabilities require an instance caller")
	}

	switch capability {
	case "window.resize":
		size := types.Size{Width: toInt(args["width"]), Height: toInt(args["height"])}
		if err := p.windows.Resize(ctx, caller.InstanceID, size); err != nil {
			return nil, err
		}
		return p.bounds(caller.InstanceID)

	case "window.move":
		pos := types.Position{X: toInt(args["x"]), Y: toInt(args["y"])}
		if err := p.windows.Move(ctx, caller.InstanceID, pos); err != nil {
			return nil, err
		}
		return p.bounds(caller.InstanceID)

	case "window.close":
		if err := p.windows.Close(ctx, caller.InstanceID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"closed": true}, nil

	default:
		return nil, errs.New(errs.KindInvalidConfig, "unknown capability %q", capability)
	}
}

func (p *Provider) bounds(instanceID string) (Bounds, error) {
	inst, err := p.windows.Get(instanceID)
	if err != nil {
		return Bounds{}, err
	}
	return Bounds{Position: inst.Position, Size: inst.Size}, nil
}

// toInt rounds a decoded JSON number to the nearest pixel
func toInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(math.Round(n))
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
