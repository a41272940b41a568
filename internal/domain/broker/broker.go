package broker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/permission"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// Provider implements one group of capabilities
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, capability string, caller types.Caller, args map[string]interface{}) (interface{}, error)
}

// Authorizer decides whether a caller may run a capability
type Authorizer interface {
	Authorize(ctx context.Context, caller types.Caller, capability, permission, reason string) error
}

// Config defines broker configuration
type Config struct {
	CallTimeout time.Duration
	Metrics     *monitoring.Metrics
}

type route struct {
	provider   Provider
	capability types.Capability
	schema     *jsonschema.Schema
}

// Broker routes capability requests
type Broker struct {
	auth   Authorizer
	cfg    Config
	logger *zap.Logger

	mu        sync.RWMutex
	routes    map[string]route
	providers map[string]Provider
}

// New creates a message broker
func New(auth Authorizer, cfg Config, logger *zap.Logger) *Broker {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	return &Broker{
		auth:      auth,
		cfg:       cfg,
		logger:    logging.OrNop(logger),
		routes:    make(map[string]route),
		providers: make(map[string]Provider),
	}
}

// Register adds a provider and compiles its argument schemas
func (b *Broker) Register(p Provider) error {
	def := p.Definition()
	if def.ID == "" {
		return errs.New(errs.KindInvalidConfig, "service ID cannot be empty")
	}

	compiled := make(map[string]route, len(def.Capabilities))
	for _, c := range def.Capabilities {
		if c.Permission != "" && !permission.Known(c.Permission) {
			return errs.New(errs.KindInvalidConfig, "%s: unknown permission %q", c.ID, c.Permission)
		}
		schema, err := compile(c)
		if err != nil {
			return errs.Wrap(errs.KindInvalidConfig, err, "%s: argument schema", c.ID)
		}
		compiled[c.ID] = route{provider: p, capability: c, schema: schema}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.providers[def.ID]; ok {
		return errs.New(errs.KindInvalidConfig, "service %s already registered", def.ID)
	}
	for capID := range compiled {
		if _, ok := b.routes[capID]; ok {
			return errs.New(errs.KindInvalidConfig, "capability %s already registered", capID)
		}
	}
	for capID, r := range compiled {
		b.routes[capID] = r
	}
	b.providers[def.ID] = p

	b.logger.Info("Service registered",
		zap.String("service", def.ID),
		zap.Int("capabilities", len(compiled)))
	return nil
}

// Services returns every registered service, sorted by id
func (b *Broker) Services() []types.Service {
	b.mu.RLock()
	out := make([]types.Service, 0, len(b.providers))
	for _, p := range b.providers {
		out = append(out, p.Definition())
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Capability returns the definition of a registered capability
func (b *Broker) Capability(id string) (types.Capability, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.routes[id]
	return r.capability, ok
}

// Handle runs one request through validation, authorization and execution
func (b *Broker) Handle(ctx context.Context, caller types.Caller, req types.Request) types.Response {
	timer := monitoring.NewTimer(b.cfg.Metrics, req.Capability)
	data, err := b.handle(ctx, caller, req)
	if err != nil {
		kind := errs.KindOf(err)
		timer.Stop(string(kind))

		log := b.logger.With(
			logging.Widget(caller.WidgetID),
			logging.Instance(caller.InstanceID),
			logging.Capability(req.Capability))
		if kind == errs.KindInternal {
			log.Error("Capability failed", zap.Error(err))
		} else {
			log.Debug("Capability rejected", zap.String("kind", string(kind)), zap.Error(err))
		}
		return Failure(err)
	}

	timer.Stop("ok")
	return Success(data)
}

func (b *Broker) handle(ctx context.Context, caller types.Caller, req types.Request) (interface{}, error) {
	b.mu.RLock()
	r, ok := b.routes[req.Capability]
	b.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.KindInvalidConfig, "unknown capability %q", req.Capability)
	}

	args, err := validateArgs(r.schema, req.Args)
	if err != nil {
		return nil, err
	}

	if err := b.auth.Authorize(ctx, caller, r.capability.ID, r.capability.Permission, r.capability.Description); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()
	return execute(callCtx, r, caller, args)
}

// execute runs the provider, turning panics into Internal errors
func execute(ctx context.Context, r route, caller types.Caller, args map[string]interface{}) (data interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			data = nil
			err = errs.New(errs.KindInternal, "%s panicked: %v", r.capability.ID, p)
		}
	}()

	data, err = r.provider.Execute(ctx, r.capability.ID, caller, args)
	if err != nil && ctx.Err() != nil && errs.KindOf(err) == errs.KindInternal {
		return nil, errs.Wrap(errs.KindInternal, ctx.Err(), "%s did not finish in time", r.capability.ID)
	}
	return data, err
}

// Success wraps data in a success envelope
func Success(data interface{}) types.Response {
	return types.Response{Success: true, Data: data}
}

// Failure renders err as an error envelope
func Failure(err error) types.Response {
	return types.Response{
		Success: false,
		Error: &types.ErrorBody{
			Kind:    string(errs.KindOf(err)),
			Message: errs.Message(err),
		},
	}
}
