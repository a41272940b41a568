package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// Bridge carries host.request calls to the message broker
type Bridge interface {
	Request(ctx context.Context, req types.Request) types.Response
}

// Config defines sandbox configuration
type Config struct {
	Timeout      time.Duration // per entry into the VM
	MaxCallStack int
}

// DefaultConfig returns a 5s budget per entry
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		MaxCallStack: 1024,
	}
}

// Runtime is one widget's script VM
type Runtime struct {
	vm     *goja.Runtime
	cfg    Config
	bridge Bridge
	logger *zap.Logger

	// ctx of the entry currently executing, used by host.request
	current  context.Context
	handlers map[string][]goja.Callable
	closed   bool
}

// New creates a runtime bound to one instance
func New(cfg Config, caller types.Caller, bridge Bridge, logger *zap.Logger) (*Runtime, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxCallStack <= 0 {
		cfg.MaxCallStack = DefaultConfig().MaxCallStack
	}

	r := &Runtime{
		vm:       goja.New(),
		cfg:      cfg,
		bridge:   bridge,
		logger:   logging.OrNop(logger).With(logging.Widget(caller.WidgetID), logging.Instance(caller.InstanceID)),
		current:  context.Background(),
		handlers: make(map[string][]goja.Callable),
	}
	r.vm.SetMaxCallStackSize(cfg.MaxCallStack)
	r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if err := r.setupGlobals(caller); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "sandbox globals")
	}
	return r, nil
}

// Run evaluates the widget script
func (r *Runtime) Run(ctx context.Context, name, src string) error {
	return r.enter(ctx, func() error {
		_, err := r.vm.RunScript(name, src)
		return err
	})
}

// Dispatch calls every handler registered for event and returns how many ran
func (r *Runtime) Dispatch(ctx context.Context, event string, payload interface{}) (int, error) {
	handlers := r.handlers[event]
	if len(handlers) == 0 {
		return 0, nil
	}

	ran := 0
	err := r.enter(ctx, func() error {
		arg := r.vm.ToValue(payload)
		for _, fn := range handlers {
			if _, err := fn(goja.Undefined(), arg); err != nil {
				return err
			}
			ran++
		}
		return nil
	})
	return ran, err
}

// Handlers returns the number of handlers registered for event
func (r *Runtime) Handlers(event string) int {
	return len(r.handlers[event])
}

// Close drops the VM; later entries fail
func (r *Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.vm.Interrupt("closed")
	r.handlers = nil
}

// enter runs fn inside the VM under the timeout and classifies failures
func (r *Runtime) enter(ctx context.Context, fn func() error) error {
	if r.closed {
		return errs.New(errs.KindInstanceCrashed, "sandbox is closed")
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	timer := time.NewTimer(r.cfg.Timeout)
	defer timer.Stop()

	go func() {
		defer close(exited)
		select {
		case <-timer.C:
			r.vm.Interrupt(errTimeout)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	r.current = ctx
	err := fn()
	r.current = context.Background()

	// the watcher must be gone before the flag is cleared
	close(done)
	<-exited
	r.vm.ClearInterrupt()
	return r.classify(err)
}

var errTimeout = errors.New("script exceeded its time budget")

func (r *Runtime) classify(err error) error {
	if err == nil {
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
				return errs.Wrap(errs.KindInstanceCrashed, cause, "script interrupted")
			}
			return errs.Wrap(errs.KindInstanceCrashed, cause, "script unresponsive")
		}
		return errs.New(errs.KindInstanceCrashed, "script interrupted: %v", interrupted.Value())
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		return errs.New(errs.KindInstanceCrashed, "uncaught exception: %s", exc.Value().String())
	}
	return errs.Wrap(errs.KindInstanceCrashed, err, "script failed")
}

func (r *Runtime) setupGlobals(caller types.Caller) error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	inert := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := r.vm.Set(name, inert); err != nil {
			return err
		}
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		if err := console.Set(level, r.consoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	host := r.vm.NewObject()
	if err := host.Set("widgetId", caller.WidgetID); err != nil {
		return err
	}
	if err := host.Set("instanceId", caller.InstanceID); err != nil {
		return err
	}
	if err := host.Set("request", r.hostRequest); err != nil {
		return err
	}
	if err := host.Set("on", r.hostOn); err != nil {
		return err
	}
	return r.vm.Set("host", host)
}

func (r *Runtime) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		switch level {
		case "error":
			r.logger.Error("widget console", zap.String("message", msg))
		case "warn":
			r.logger.Warn("widget console", zap.String("message", msg))
		default:
			r.logger.Info("widget console", zap.String("message", msg))
		}
		return goja.Undefined()
	}
}

func (r *Runtime) hostRequest(call goja.FunctionCall) goja.Value {
	capability := call.Argument(0)
	if goja.IsUndefined(capability) || goja.IsNull(capability) {
		panic(r.vm.NewTypeError("host.request: capability is required"))
	}

	req := types.Request{Capability: capability.String(), Args: map[string]interface{}{}}
	if a := call.Argument(1); !goja.IsUndefined(a) && !goja.IsNull(a) {
		exported, ok := a.Export().(map[string]interface{})
		if !ok {
			panic(r.vm.NewTypeError("host.request: args must be an object"))
		}
		req.Args = exported
	}

	if r.bridge == nil {
		return r.vm.ToValue(types.Response{
			Error: &types.ErrorBody{Kind: string(errs.KindInternal), Message: "no broker attached"},
		})
	}
	return r.vm.ToValue(r.bridge.Request(r.current, req))
}

func (r *Runtime) hostOn(call goja.FunctionCall) goja.Value {
	event := call.Argument(0).String()
	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		panic(r.vm.NewTypeError(fmt.Sprintf("host.on(%q): handler must be a function", event)))
	}
	r.handlers[event] = append(r.handlers[event], fn)
	return goja.Undefined()
}
