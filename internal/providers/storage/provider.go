package storage

import (
	"context"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const (
	keySchema = `{
	"type": "object",
	"properties": {
		"key": {"type": "string", "minLength": 1, "maxLength": 128}
	},
	"required": ["key"],
	"additionalProperties": false
}`

	setSchema = `{
	"type": "object",
	"properties": {
		"key":   {"type": "string", "minLength": 1, "maxLength": 128},
		"value": {}
	},
	"required": ["key", "value"],
	"additionalProperties": false
}`
)

// KV is the per-widget key/value backend
type KV interface {
	KVGet(ctx context.Context, widgetID, key string) (interface{}, bool, error)
	KVSet(ctx context.Context, widgetID, key string, value interface{}) error
	KVDelete(ctx context.Context, widgetID, key string) (bool, error)
	KVKeys(ctx context.Context, widgetID string) ([]string, error)
}

// Provider gives each widget a private key/value namespace
type Provider struct {
	kv KV
}

// NewProvider creates a storage provider
func NewProvider(kv KV) *Provider {
	return &Provider{kv: kv}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "storage",
		Name:        "Storage",
		Description: "Private key/value storage per widget",
		Category:    types.CategoryStorage,
		Capabilities: []types.Capability{
			{ID: "storage.get", Name: "Get", Description: "read a stored value", Schema: keySchema},
			{ID: "storage.set", Name: "Set", Description: "store a value", Schema: setSchema},
			{ID: "storage.remove", Name: "Remove", Description: "remove a stored value", Schema: keySchema},
			{ID: "storage.keys", Name: "Keys", Description: "list stored keys"},
		},
	}
}

// Execute runs a storage capability in the caller's namespace
func (p *Provider) Execute(ctx context.Context, capability string, caller types.Caller, args map[string]interface{}) (interface{}, error) {
	if caller.WidgetID == "" {
		return nil, errs.New(errs.KindInvalidConfig, "storage requires a widget caller")
	}
	key, _ := args["key"].(string)

	switch capability {
	case "storage.get":
		value, found, err := p.kv.KVGet(ctx, caller.WidgetID, key)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"key": key, "value": value, "found": found}, nil

	case "storage.set":
		if err := p.kv.KVSet(ctx, caller.WidgetID, key, args["value"]); err != nil {
			return nil, err
		}
		return map[string]interface{}{"key": key, "stored": true}, nil

	case "storage.remove":
		removed, err := p.kv.KVDelete(ctx, caller.WidgetID, key)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"key": key, "removed": removed}, nil

	case "storage.keys":
		keys, err := p.kv.KVKeys(ctx, caller.WidgetID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"keys": keys}, nil

	default:
		return nil, errs.New(errs.KindInvalidConfig, "unknown capability %q", capability)
	}
}
