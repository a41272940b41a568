package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
	"github.com/GriffinCanCode/WidgetHost/internal/store"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProvider(db)
}

func call(t *testing.T, p *Provider, w, capability string, args map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, err := p.Execute(context.Background(), capability, types.Caller{WidgetID: w}, args)
	require.NoError(t, err)
	return data.(map[string]interface{})
}

func TestSetGetRemove(t *testing.T) {
	p := newProvider(t)

	call(t, p, "notes", "storage.set", map[string]interface{}{"key": "draft", "value": map[string]interface{}{"text": "hi", "n": 2.0}})

	got := call(t, p, "notes", "storage.get", map[string]interface{}{"key": "draft"})
	assert.Equal(t, true, got["found"])
	assert.Equal(t, map[string]interface{}{"text": "hi", "n": 2.0}, got["value"])

	got = call(t, p, "notes", "storage.keys", nil)
	assert.Equal(t, []string{"draft"}, got["keys"])

	got = call(t, p, "notes", "storage.remove", map[string]interface{}{"key": "draft"})
	assert.Equal(t, true, got["removed"])

	got = call(t, p, "notes", "storage.remove", map[string]interface{}{"key": "draft"})
	assert.Equal(t, false, got["removed"])

	got = call(t, p, "notes", "storage.get", map[string]interface{}{"key": "draft"})
	assert.Equal(t, false, got["found"])
	assert.Nil(t, got["value"])
}

func TestNamespacesAreIsolated(t *testing.T) {
	p := newProvider(t)

	call(t, p, "notes", "storage.set", map[string]interface{}{"key": "k", "value": "mine"})
	call(t, p, "clock", "storage.set", map[string]interface{}{"key": "k", "value": "theirs"})

	assert.Equal(t, "mine", call(t, p, "notes", "storage.get", map[string]interface{}{"key": "k"})["value"])
	assert.Equal(t, "theirs", call(t, p, "clock", "storage.get", map[string]interface{}{"key": "k"})["value"])

	call(t, p, "clock", "storage.remove", map[string]interface{}{"key": "k"})
	assert.Equal(t, true, call(t, p, "notes", "storage.get", map[string]interface{}{"key": "k"})["found"])
	assert.Equal(t, []string{}, call(t, p, "clock", "storage.keys", nil)["keys"])
}

func TestOversizedValueRejected(t *testing.T) {
	p := newProvider(t)
	_, err := p.Execute(context.Background(), "storage.set", types.Caller{WidgetID: "notes"},
		map[string]interface{}{"key": "big", "value": strings.Repeat("x", store.MaxValueBytes)})
	assert.True(t, errs.Is(err, errs.KindInvalidConfig))
}

func TestRequiresWidgetCaller(t *testing.T) {
	p := newProvider(t)
	_, err := p.Execute(context.Background(), "storage.keys", types.Caller{}, nil)
	assert.True(t, errs.Is(err, errs.KindInvalidConfig))

	_, err = p.Execute(context.Background(), "storage.wipe", types.Caller{WidgetID: "notes"}, nil)
	assert.True(t, errs.Is(err, errs.KindInvalidConfig))
}
