package window

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/broker"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

type fakeWindows struct {
	mu    sync.Mutex
	inst  map[string]types.WidgetInstance
	calls []string
}

func newFakeWindows(ids ...string) *fakeWindows {
	f := &fakeWindows{inst: map[string]types.WidgetInstance{}}
	for _, id := range ids {
		f.inst[id] = types.WidgetInstance{InstanceID: id, Size: types.Size{Width: 200, Height: 200}}
	}
	return f
}

func (f *fakeWindows) get(id string) (types.WidgetInstance, error) {
	inst, ok := f.inst[id]
	if !ok {
		return inst, errs.New(errs.KindNotFound, "instance %s not found", id)
	}
	return inst, nil
}

func (f *fakeWindows) Move(_ context.Context, id string, pos types.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, err := f.get(id)
	if err != nil {
		return err
	}
	inst.Position = pos
	f.inst[id] = inst
	f.calls = append(f.calls, "move")
	return nil
}

func (f *fakeWindows) Resize(_ context.Context, id string, size types.Size) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, err := f.get(id)
	if err != nil {
		return err
	}
	inst.Size = size
	f.inst[id] = inst
	f.calls = append(f.calls, "resize")
	return nil
}

func (f *fakeWindows) Close(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inst, id)
	f.calls = append(f.calls, "close")
	return nil
}

func (f *fakeWindows) Get(id string) (types.WidgetInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

type allowAll struct{}

func (allowAll) Authorize(context.Context, types.Caller, string, string, string) error { return nil }

var clock = types.Caller{InstanceID: "inst_clock", WidgetID: "clock", WidgetName: "Clock"}

func newBroker(t *testing.T, w Windows) *broker.Broker {
	t.Helper()
	b := broker.New(allowAll{}, broker.Config{}, nil)
	require.NoError(t, b.Register(NewProvider(w)))
	return b
}

func TestResizeAndMove(t *testing.T) {
	w := newFakeWindows("inst_clock")
	b := newBroker(t, w)
	ctx := context.Background()

	res := b.Handle(ctx, clock, types.Request{Capability: "window.resize", Args: map[string]interface{}{"width": 300.4, "height": 250}})
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, types.Size{Width: 300, Height: 250}, res.Data.(Bounds).Size)

	res = b.Handle(ctx, clock, types.Request{Capability: "window.move", Args: map[string]interface{}{"x": -40, "y": 90}})
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, types.Position{X: -40, Y: 90}, res.Data.(Bounds).Position)

	assert.Equal(t, []string{"resize", "move"}, w.calls)
}

func TestOutOfRangeNeverReachesSupervisor(t *testing.T) {
	w := newFakeWindows("inst_clock")
	b := newBroker(t, w)
	ctx := context.Background()

	for _, args := range []map[string]interface{}{
		{"width": 5000, "height": 300},
		{"width": 99, "height": 300},
		{"width": "300", "height": 300},
	} {
		res := b.Handle(ctx, clock, types.Request{Capability: "window.resize", Args: args})
		require.NotNil(t, res.Error)
		assert.Equal(t, string(errs.KindInvalidConfig), res.Error.Kind)
	}
	res := b.Handle(ctx, clock, types.Request{Capability: "window.move", Args: map[string]interface{}{"x": 20000, "y": 0}})
	require.NotNil(t, res.Error)
	assert.Equal(t, string(errs.KindInvalidConfig), res.Error.Kind)

	assert.Empty(t, w.calls)
}

func TestClose(t *testing.T) {
	w := newFakeWindows("inst_clock")
	b := newBroker(t, w)

	res := b.Handle(context.Background(), clock, types.Request{Capability: "window.close"})
	require.True(t, res.Success)
	assert.Equal(t, []string{"close"}, w.calls)

	res = b.Handle(context.Background(), clock, types.Request{Capability: "window.move", Args: map[string]interface{}{"x": 1, "y": 1}})
	require.NotNil(t, res.Error)
	assert.Equal(t, string(errs.KindNotFound), res.Error.Kind)
}

func TestRequiresInstanceCaller(t *testing.T) {
	p := NewProvider(newFakeWindows())
	_, err := p.Execute(context.Background(), "window.close", types.Caller{WidgetID: "clock"}, nil)
	assert.True(t, errs.Is(err, errs.KindInvalidConfig))
}
