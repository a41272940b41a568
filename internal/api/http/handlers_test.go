package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/registry"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

type fakeSupervisor struct {
	inst     types.WidgetInstance
	moves    []types.Position
	resizes  []types.Size
	capacity int
}

func (f *fakeSupervisor) Launch(context.Context, string) (string, error) {
	return f.inst.InstanceID, nil
}
func (f *fakeSupervisor) Close(context.Context, string) error { return nil }
func (f *fakeSupervisor) Move(_ context.Context, id string, pos types.Position) error {
	if id != f.inst.InstanceID {
		return errs.New(errs.KindNotFound, "unknown instance %s", id)
	}
	f.moves = append(f.moves, pos)
	f.inst.Position = pos
	return nil
}
func (f *fakeSupervisor) Resize(_ context.Context, _ string, size types.Size) error {
	if size.Width < 100 {
		return errs.New(errs.KindInvalidConfig, "too small")
	}
	f.resizes = append(f.resizes, size)
	f.inst.Size = size
	return nil
}
func (f *fakeSupervisor) ReportCrash(string, string) error { return nil }
func (f *fakeSupervisor) Dispatch(context.Context, string, string, interface{}) (int, error) {
	return 1, nil
}
func (f *fakeSupervisor) Caller(id string) (types.Caller, error) {
	if id != f.inst.InstanceID {
		return types.Caller{}, errs.New(errs.KindNotFound, "unknown instance %s", id)
	}
	return types.Caller{InstanceID: id, WidgetID: f.inst.WidgetID}, nil
}
func (f *fakeSupervisor) Get(id string) (types.WidgetInstance, error) {
	if id != f.inst.InstanceID {
		return types.WidgetInstance{}, errs.New(errs.KindNotFound, "unknown instance %s", id)
	}
	return f.inst, nil
}
func (f *fakeSupervisor) List() []types.WidgetInstance { return []types.WidgetInstance{f.inst} }
func (f *fakeSupervisor) Stats() types.Stats          { return types.Stats{Running: 1} }
func (f *fakeSupervisor) SetCapacity(n int) error {
	f.capacity = n
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) List() []*types.WidgetDescriptor { return nil }
func (fakeCatalog) Rescan(context.Context) (*registry.ScanResult, error) {
	return &registry.ScanResult{}, nil
}
func (fakeCatalog) Rejected() []registry.Rejection { return nil }
func (fakeCatalog) Stats() types.RegistryStats     { return types.RegistryStats{} }

type echoBroker struct{ last types.Request }

func (b *echoBroker) Handle(_ context.Context, c types.Caller, req types.Request) types.Response {
	b.last = req
	if req.Capability == "test.denied" {
		return types.Response{Error: &types.ErrorBody{Kind: "PermissionDenied", Message: "denied"}}
	}
	return types.Response{Success: true, Data: c.WidgetID}
}
func (b *echoBroker) Services() []types.Service { return nil }

type memSettings struct{ s types.Settings }

func (m *memSettings) Settings(context.Context) (types.Settings, error) { return m.s, nil }
func (m *memSettings) UpdateSettings(_ context.Context, p types.SettingsPatch) (types.Settings, error) {
	m.s = p.Apply(m.s)
	return m.s, nil
}

type noRevoke struct{}

func (noRevoke) Revoke(context.Context, string) error { return nil }

type fixture struct {
	sup      *fakeSupervisor
	broker   *echoBroker
	settings *memSettings
	router   *gin.Engine
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		sup: &fakeSupervisor{inst: types.WidgetInstance{
			InstanceID: "inst_1",
			WidgetID:   "clock",
			Size:       types.Size{Width: 200, Height: 200},
		}},
		broker:   &echoBroker{},
		settings: &memSettings{s: types.Settings{AutoRestore: true, MaxWidgets: 10}},
		router:   gin.New(),
	}
	NewHandlers(Deps{
		Supervisor:  f.sup,
		Catalog:     fakeCatalog{},
		Broker:      f.broker,
		Permissions: noRevoke{},
		Settings:    f.settings,
	}, "test", nil).Register(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, types.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var res types.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w.Code, res
}

func TestStatusOf(t *testing.T) {
	cases := map[errs.Kind]int{
		errs.KindInvalidConfig:     http.StatusBadRequest,
		errs.KindPermissionDenied:  http.StatusForbidden,
		errs.KindNotFound:          http.StatusNotFound,
		errs.KindCapacityExceeded:  http.StatusConflict,
		errs.KindInstanceCrashed:   http.StatusConflict,
		errs.KindRateLimitExceeded: http.StatusTooManyRequests,
		errs.KindStorageError:      http.StatusInternalServerError,
		errs.KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusOf(kind), string(kind))
	}
}

func TestUpdateBounds(t *testing.T) {
	f := newFixture()

	code, res := f.do(t, http.MethodPost, "/instances/inst_1/bounds", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, res.Error)
	assert.Equal(t, "InvalidConfig", res.Error.Kind)

	code, res = f.do(t, http.MethodPost, "/instances/inst_1/bounds", `{"position": {"x": 40, "y": 60}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	assert.Equal(t, []types.Position{{X: 40, Y: 60}}, f.sup.moves)
	assert.Empty(t, f.sup.resizes)

	code, res = f.do(t, http.MethodPost, "/instances/inst_1/bounds", `{"size": {"width": 50, "height": 50}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, res.Error)

	code, _ = f.do(t, http.MethodPost, "/instances/inst_9/bounds", `{"position": {"x": 1, "y": 1}}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, res = f.do(t, http.MethodPost, "/instances/inst_1/bounds", `{"position": `)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.Message, "invalid request body")
}

func TestRequestReturnsBrokerEnvelope(t *testing.T) {
	f := newFixture()

	code, res := f.do(t, http.MethodPost, "/instances/inst_1/request", `{"capability": "test.echo", "args": {"n": 1}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	assert.Equal(t, "clock", res.Data)
	assert.Equal(t, "test.echo", f.broker.last.Capability)

	// a refused capability is still a successful HTTP exchange
	code, res = f.do(t, http.MethodPost, "/instances/inst_1/request", `{"capability": "test.denied"}`)
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, res.Error)
	assert.Equal(t, "PermissionDenied", res.Error.Kind)

	code, _ = f.do(t, http.MethodPost, "/instances/inst_1/request", `{"args": {}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = f.do(t, http.MethodPost, "/instances/inst_9/request", `{"capability": "test.echo"}`)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, res.Error)
	assert.Equal(t, "NotFound", res.Error.Kind)
}

func TestUpdateSettingsAppliesCapacity(t *testing.T) {
	f := newFixture()

	code, res := f.do(t, http.MethodPut, "/settings", `{"autoRestore": false}`)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	assert.False(t, f.settings.s.AutoRestore)
	assert.Zero(t, f.sup.capacity, "capacity untouched")

	code, _ = f.do(t, http.MethodPut, "/settings", `{"maxWidgets": 4}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4, f.sup.capacity)
	assert.Equal(t, 4, f.settings.s.MaxWidgets)
}
