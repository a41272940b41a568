package permissions

import (
	"context"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/permission"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const (
	checkSchema = `{
	"type": "object",
	"properties": {
		"capability": {"type": "string", "minLength": 1}
	},
	"required": ["capability"],
	"additionalProperties": false
}`

	requestSchema = `{
	"type": "object",
	"properties": {
		"capability": {"type": "string", "minLength": 1},
		"reason":     {"type": "string", "maxLength": 500}
	},
	"required": ["capability"],
	"additionalProperties": false
}`
)

// Grants is the permission broker surface exposed to widgets
type Grants interface {
	HasGranted(ctx context.Context, widgetID, permission string) (bool, error)
	RequestGrant(ctx context.Context, widgetID, widgetName, permission, reason string) (bool, error)
}

// Status is the result of permissions.check and permissions.request
type Status struct {
	Capability string `json:"capability"`
	Declared   bool   `json:"declared"`
	Granted    bool   `json:"granted"`
	// Pending is set when the user has not answered before the call gave up.
	// The prompt stays open and its answer is stored.
	Pending bool `json:"pending,omitempty"`
}

// Provider lets widgets inspect and ask for their own permissions
type Provider struct {
	grants Grants
}

// NewProvider creates a permissions provider
func NewProvider(grants Grants) *Provider {
	return &Provider{grants: grants}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "permissions",
		Name:        "Permissions",
		Description: "Inspect and request the calling widget's permissions",
		Category:    types.CategoryPermissions,
		Capabilities: []types.Capability{
			{ID: "permissions.check", Name: "Check", Description: "check a permission", Schema: checkSchema},
			{ID: "permissions.request", Name: "Request", Description: "ask for a permission", Schema: requestSchema},
		},
	}
}

// Execute runs a permissions capability for the caller
func (p *Provider) Execute(ctx context.Context, capability string, caller types.Caller, args map[string]interface{}) (interface{}, error) {
	name, _ := args["capability"].(string)
	if !permission.Known(name) {
		return nil, errs.New(errs.KindInvalidConfig, "unknown permission %q", name)
	}
	status := Status{Capability: name, Declared: permission.Declared(caller.Declared, name)}

	switch capability {
	case "permissions.check":
		granted, err := p.grants.HasGranted(ctx, caller.WidgetID, name)
		if err != nil {
			return nil, err
		}
		status.Granted = granted && status.Declared
		return status, nil

	case "permissions.request":
		if !status.Declared {
			return nil, errs.New(errs.KindPermissionDenied,
				"%s did not declare the %s permission", caller.WidgetID, name)
		}
		reason, _ := args["reason"].(string)
		return p.request(ctx, caller, status, reason)

	default:
		return nil, errs.New(errs.KindInvalidConfig, "unknown capability %q", capability)
	}
}

type answer struct {
	granted bool
	err     error
}

// request waits for the user while ctx allows, then reports the prompt as pending
func (p *Provider) request(ctx context.Context, caller types.Caller, status Status, reason string) (Status, error) {
	done := make(chan answer, 1)
	go func() {
		granted, err := p.grants.RequestGrant(context.WithoutCancel(ctx), caller.WidgetID, caller.WidgetName, status.Capability, reason)
		done <- answer{granted, err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			return Status{}, a.err
		}
		status.Granted = a.granted
		return status, nil
	case <-ctx.Done():
		status.Pending = true
		return status, nil
	}
}
