package permission

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/id"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const maxTextLen = 200

// Store persists decisions
type Store interface {
	Decision(ctx context.Context, widgetID, permission string) (granted, decided bool, err error)
	SetDecision(ctx context.Context, widgetID, permission string, granted bool) error
	Decisions(ctx context.Context, widgetID string) (map[string]bool, error)
	DeleteDecisions(ctx context.Context, widgetID string) error
}

// Limiter consumes rate budget
type Limiter interface {
	Check(widgetID, capability string, strict bool) (bool, error)
}

// Prompt is shown to the user when a widget first asks for a permission
type Prompt struct {
	ID         string `json:"id"`
	WidgetID   string `json:"widget_id"`
	WidgetName string `json:"widget_name"`
	Capability string `json:"capability"`
	Label      string `json:"label"`
	Reason     string `json:"reason,omitempty"`
}

// Prompter asks the user. It must honor ctx cancellation.
type Prompter interface {
	Prompt(ctx context.Context, p Prompt) (bool, error)
}

// Decision is emitted after a grant is stored or revoked
type Decision struct {
	WidgetID   string
	Permission string
	Granted    bool
	Revoked    bool
}

// Config defines broker configuration
type Config struct {
	PromptTimeout time.Duration
	Metrics       *monitoring.Metrics
}

// Broker answers permission questions for widgets
type Broker struct {
	store    Store
	limiter  Limiter
	cfg      Config
	logger   *zap.Logger
	sanitize *bluemonday.Policy
	flights  singleflight.Group

	mu       sync.RWMutex
	prompter Prompter
	cache    map[string]map[string]bool // widget -> permission -> granted

	listenMu  sync.RWMutex
	listeners []func(Decision)
}

// NewBroker creates a permission broker
func NewBroker(store Store, limiter Limiter, cfg Config, logger *zap.Logger) *Broker {
	if cfg.PromptTimeout <= 0 {
		cfg.PromptTimeout = 30 * time.Second
	}
	return &Broker{
		store:    store,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logging.OrNop(logger),
		sanitize: bluemonday.StrictPolicy(),
		cache:    make(map[string]map[string]bool),
	}
}

// SetPrompter installs the presenter used for first-time requests
func (b *Broker) SetPrompter(p Prompter) {
	b.mu.Lock()
	b.prompter = p
	b.mu.Unlock()
}

// OnDecision registers a listener for stored and revoked decisions
func (b *Broker) OnDecision(fn func(Decision)) {
	b.listenMu.Lock()
	b.listeners = append(b.listeners, fn)
	b.listenMu.Unlock()
}

// HasGranted reports whether the user granted the permission. It never prompts.
func (b *Broker) HasGranted(ctx context.Context, widgetID, permission string) (bool, error) {
	if err := validate(permission); err != nil {
		return false, err
	}
	granted, _, err := b.lookup(ctx, widgetID, permission)
	return granted, err
}

// RequestGrant returns the stored decision, prompting the user first if
// there is none. Concurrent requests for one pair share a single prompt.
// A timeout or missing presenter denies without storing anything. A caller
// whose ctx ends first is denied while the prompt stays open; the answer is
// still stored when it arrives.
func (b *Broker) RequestGrant(ctx context.Context, widgetID, widgetName, permission, reason string) (bool, error) {
	if err := validate(permission); err != nil {
		return false, err
	}
	if granted, decided, err := b.lookup(ctx, widgetID, permission); err != nil || decided {
		return granted, err
	}

	detached := context.WithoutCancel(ctx)
	ch := b.flights.DoChan(widgetID+"\x00"+permission, func() (interface{}, error) {
		// another flight may have stored a decision while we waited
		if granted, decided, err := b.lookup(detached, widgetID, permission); err != nil || decided {
			return granted, err
		}
		return b.prompt(detached, widgetID, widgetName, permission, reason)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	case <-ctx.Done():
		b.logger.Debug("Stopped waiting for permission answer",
			logging.Widget(widgetID),
			zap.String("permission", permission),
			zap.Error(ctx.Err()))
		return false, nil
	}
}

func (b *Broker) prompt(ctx context.Context, widgetID, widgetName, permission, reason string) (bool, error) {
	b.mu.RLock()
	prompter := b.prompter
	b.mu.RUnlock()

	log := b.logger.With(logging.Widget(widgetID), zap.String("permission", permission))
	if prompter == nil {
		log.Warn("No permission presenter attached, denying")
		b.cfg.Metrics.RecordPrompt(permission, "unavailable")
		return false, nil
	}

	p := Prompt{
		ID:         id.NewPromptID().String(),
		WidgetID:   widgetID,
		WidgetName: b.clean(widgetName),
		Capability: permission,
		Label:      Label(permission),
		Reason:     b.clean(reason),
	}
	if p.WidgetName == "" {
		p.WidgetName = widgetID
	}

	// one caller giving up must not deny the others sharing this prompt
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.PromptTimeout)
	defer cancel()

	allow, err := prompter.Prompt(pctx, p)
	if err != nil {
		log.Info("Permission prompt unanswered, denying", zap.Error(err))
		b.cfg.Metrics.RecordPrompt(permission, "timeout")
		return false, nil
	}

	if err := b.store.SetDecision(context.WithoutCancel(ctx), widgetID, permission, allow); err != nil {
		return false, err
	}
	b.remember(widgetID, permission, allow)

	decision := "denied"
	if allow {
		decision = "granted"
	}
	b.cfg.Metrics.RecordPrompt(permission, decision)
	log.Info("Permission decided", zap.Bool("granted", allow))

	b.emit(Decision{WidgetID: widgetID, Permission: permission, Granted: allow})
	return allow, nil
}

// Authorize runs the declared, granted and rate checks for one call.
// permission may be empty for capabilities that only need rate budget.
func (b *Broker) Authorize(ctx context.Context, caller types.Caller, capability, permission, reason string) error {
	if permission != "" {
		if err := validate(permission); err != nil {
			return err
		}
		if !Declared(caller.Declared, permission) {
			return errs.New(errs.KindPermissionDenied,
				"%s did not declare the %s permission", caller.WidgetID, permission)
		}
		ok, err := b.RequestGrant(ctx, caller.WidgetID, caller.WidgetName, permission, reason)
		if err != nil {
			return err
		}
		if !ok {
			return errs.New(errs.KindPermissionDenied,
				"%s is not allowed to %s", caller.WidgetID, Label(permission))
		}
	}

	_, err := b.limiter.Check(caller.WidgetID, capability, true)
	return err
}

// Revoke forgets every decision for a widget so the next request prompts again
func (b *Broker) Revoke(ctx context.Context, widgetID string) error {
	if err := b.store.DeleteDecisions(ctx, widgetID); err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.cache, widgetID)
	b.mu.Unlock()

	b.logger.Info("Permissions revoked", logging.Widget(widgetID))
	b.emit(Decision{WidgetID: widgetID, Revoked: true})
	return nil
}

// PermissionSet returns the effective set for a widget: declared and granted
func (b *Broker) PermissionSet(ctx context.Context, desc *types.WidgetDescriptor) (types.PermissionSet, error) {
	decisions, err := b.store.Decisions(ctx, desc.ID)
	if err != nil {
		return types.PermissionSet{}, err
	}

	b.mu.Lock()
	b.cache[desc.ID] = decisions
	b.mu.Unlock()

	return desc.Permissions.Intersect(FromDecisions(decisions)), nil
}

func (b *Broker) lookup(ctx context.Context, widgetID, permission string) (granted, decided bool, err error) {
	b.mu.RLock()
	if perms, ok := b.cache[widgetID]; ok {
		if g, ok := perms[permission]; ok {
			b.mu.RUnlock()
			return g, true, nil
		}
	}
	b.mu.RUnlock()

	granted, decided, err = b.store.Decision(ctx, widgetID, permission)
	if err != nil || !decided {
		return false, false, err
	}
	b.remember(widgetID, permission, granted)
	return granted, true, nil
}

func (b *Broker) remember(widgetID, permission string, granted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	perms, ok := b.cache[widgetID]
	if !ok {
		perms = make(map[string]bool)
		b.cache[widgetID] = perms
	}
	perms[permission] = granted
}

func (b *Broker) emit(d Decision) {
	b.listenMu.RLock()
	listeners := append([]func(Decision){}, b.listeners...)
	b.listenMu.RUnlock()

	for _, fn := range listeners {
		fn(d)
	}
}

// clean strips markup from widget supplied text and bounds its length
func (b *Broker) clean(s string) string {
	s = strings.TrimSpace(b.sanitize.Sanitize(s))
	if utf8.RuneCountInString(s) <= maxTextLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxTextLen]) + "…"
}
