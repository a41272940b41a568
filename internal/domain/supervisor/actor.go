package supervisor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/sandbox"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const opQueue = 64

// outcome is why an instance left the live set
type outcome int

const (
	outcomeClosed outcome = iota
	outcomeCrashed
	outcomeShutdown
)

type op struct {
	ctx    context.Context
	fn     func(ctx context.Context) error
	result chan error // nil for fire-and-forget ops
}

// entry is one live instance. inst is guarded by Supervisor.mu; runtime is
// only touched on the actor goroutine.
type entry struct {
	inst    types.WidgetInstance
	desc    *types.WidgetDescriptor
	surface Surface
	runtime *sandbox.Runtime

	ops  chan op
	stop chan struct{}
	done chan struct{}
	once sync.Once

	// set before stop is closed
	outcome outcome
	reason  string
}

func newEntry(inst types.WidgetInstance, desc *types.WidgetDescriptor, surface Surface) *entry {
	return &entry{
		inst:    inst,
		desc:    desc,
		surface: surface,
		ops:     make(chan op, opQueue),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

type actorKey struct{}

// onActor reports whether ctx belongs to an op already running on e
func onActor(ctx context.Context, e *entry) bool {
	cur, _ := ctx.Value(actorKey{}).(*entry)
	return cur == e
}

// submit runs fn on the instance actor and waits for it. Calls made from an
// op already running on the same actor execute inline.
func (e *entry) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	if onActor(ctx, e) {
		return fn(ctx)
	}

	o := op{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case e.ops <- o:
	case <-e.stop:
		return errs.New(errs.KindNotFound, "instance %s is closing", e.inst.InstanceID)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-o.result:
		return err
	case <-e.done:
		return errs.New(errs.KindNotFound, "instance %s is closed", e.inst.InstanceID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting
func (e *entry) post(fn func(ctx context.Context) error) bool {
	select {
	case e.ops <- op{ctx: context.Background(), fn: fn}:
		return true
	case <-e.stop:
		return false
	}
}

// run is the actor loop. Ops queued before stop still run; then the instance
// is finalized on this goroutine.
func (s *Supervisor) run(e *entry) {
	defer s.wg.Done()
	defer close(e.done)

	for {
		select {
		case o := <-e.ops:
			s.exec(e, o)
		case <-e.stop:
			s.drain(e)
			s.finalize(e)
			return
		}
	}
}

func (s *Supervisor) drain(e *entry) {
	for {
		select {
		case o := <-e.ops:
			s.exec(e, o)
		default:
			return
		}
	}
}

func (s *Supervisor) exec(e *entry, o op) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Instance panicked",
					logging.Instance(e.inst.InstanceID),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				err = errs.New(errs.KindInstanceCrashed, "instance panicked: %v", r)
			}
		}()
		return o.fn(context.WithValue(o.ctx, actorKey{}, e))
	}()

	if errs.Is(err, errs.KindInstanceCrashed) {
		s.retire(e, outcomeCrashed, errs.Message(err))
	} else if err != nil && o.result == nil {
		s.logger.Warn("Background op failed", logging.Instance(e.inst.InstanceID), zap.Error(err))
	}
	if o.result != nil {
		o.result <- err
	}
}

// retire removes e from the live set and asks its actor to stop. It reports
// false if e was already retired. It never blocks.
func (s *Supervisor) retire(e *entry, out outcome, reason string) bool {
	s.mu.Lock()
	cur, ok := s.live[e.inst.InstanceID]
	if !ok || cur != e {
		s.mu.Unlock()
		return false
	}
	delete(s.live, e.inst.InstanceID)
	s.retired[e.inst.InstanceID] = struct{}{}
	e.outcome = out
	e.reason = reason
	if out == outcomeCrashed {
		s.crashed++
	}
	n := len(s.live)
	s.mu.Unlock()

	s.cfg.Metrics.SetInstancesActive(n)
	e.once.Do(func() { close(e.stop) })
	return true
}

// teardown retires e and waits for its actor to finish. From inside the
// actor it only retires; finalization follows the current op.
func (s *Supervisor) teardown(ctx context.Context, e *entry, out outcome, reason string) error {
	s.retire(e, out, reason)
	if onActor(ctx, e) {
		return nil
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finalize persists the final record and releases the instance resources.
// Errors are logged, never returned.
func (s *Supervisor) finalize(e *entry) {
	s.mu.RLock()
	inst := e.inst
	s.mu.RUnlock()

	log := s.logger.With(logging.Widget(inst.WidgetID), logging.Instance(inst.InstanceID))
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FinalizeTimeout)
	defer cancel()

	if err := s.persist.SaveOnClose(ctx, inst.InstanceID, e.outcome == outcomeShutdown); err != nil {
		log.Warn("Final state write failed", zap.Error(err))
	}

	fadeCtx, fadeCancel := context.WithTimeout(ctx, s.cfg.FadeOut+fadeSlack)
	if err := e.surface.Fade(fadeCtx, false, s.cfg.FadeOut); err != nil {
		log.Debug("Fade out failed", zap.Error(err))
	}
	fadeCancel()

	if e.runtime != nil {
		e.runtime.Close()
		e.runtime = nil
	}
	if err := e.surface.Close(); err != nil {
		log.Warn("Surface close failed", zap.Error(err))
	}

	switch e.outcome {
	case outcomeCrashed:
		s.cfg.Metrics.RecordCrash(inst.WidgetID)
		log.Warn("Instance crashed", zap.String("reason", e.reason))
		s.emit(EventCrashed, inst, e.reason)
	case outcomeShutdown:
		log.Info("Instance suspended for shutdown")
		s.emit(EventClosed, inst, "shutdown")
	default:
		log.Info("Instance closed")
		s.emit(EventClosed, inst, e.reason)
	}
}

// bridge carries sandbox host.request calls to the message broker
type bridge struct {
	s      *Supervisor
	caller types.Caller
}

func (b bridge) Request(ctx context.Context, req types.Request) types.Response {
	h := b.s.handler()
	if h == nil {
		return types.Response{Error: &types.ErrorBody{
			Kind:    string(errs.KindInternal),
			Message: fmt.Sprintf("no broker attached for %s", req.Capability),
		}}
	}
	ctx, cancel := context.WithTimeout(ctx, b.s.cfg.ScriptRequestTimeout)
	defer cancel()
	return h.Handle(ctx, b.caller, req)
}
