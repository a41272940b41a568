package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "host.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "host.db")
	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "host.db")
	for i := 0; i < 2; i++ {
		s, err := New(dbPath)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}
}

func TestInMemory(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SetDecision(context.Background(), "clock", "network", true))
}

func TestStateCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000).UTC()

	st := types.PersistedWidgetState{
		WidgetID:   "clock",
		InstanceID: "inst_1",
		Position:   types.Position{X: 10, Y: -20},
		Size:       types.Size{Width: 300, Height: 200},
		IsRunning:  true,
		LastActive: at,
		Permissions: types.PermissionSet{
			Network: types.NetworkPermissions{Enabled: true, AllowedDomains: []string{"*.example.com"}},
		},
	}
	require.NoError(t, s.SaveState(ctx, st))

	got, err := s.GetState(ctx, "inst_1")
	require.NoError(t, err)
	assert.Equal(t, st, *got)

	st.IsRunning = false
	st.Position.X = 99
	require.NoError(t, s.SaveState(ctx, st))
	got, err = s.GetState(ctx, "inst_1")
	require.NoError(t, err)
	assert.False(t, got.IsRunning)
	assert.Equal(t, 99, got.Position.X)

	require.NoError(t, s.DeleteState(ctx, "inst_1"))
	_, err = s.GetState(ctx, "inst_1")
	assert.True(t, errs.Is(err, errs.KindNotFound))
	require.NoError(t, s.DeleteState(ctx, "inst_1"))
}

func TestLatestForWidgetAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, running := range []bool{true, false, true} {
		require.NoError(t, s.SaveState(ctx, types.PersistedWidgetState{
			WidgetID:   "clock",
			InstanceID: fmt.Sprintf("inst_%d", i),
			Position:   types.Position{X: i},
			Size:       types.Size{Width: 200, Height: 200},
			IsRunning:  running,
			LastActive: base.Add(time.Duration(i) * time.Second),
		}))
	}

	latest, err := s.LatestForWidget(ctx, "clock")
	require.NoError(t, err)
	assert.Equal(t, "inst_2", latest.InstanceID)

	_, err = s.LatestForWidget(ctx, "weather")
	assert.True(t, errs.Is(err, errs.KindNotFound))

	all, err := s.ListStates(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	running, err := s.ListStates(ctx, true)
	require.NoError(t, err)
	require.Len(t, running, 2)
	assert.Equal(t, "inst_0", running[0].InstanceID)
	assert.Equal(t, "inst_2", running[1].InstanceID)
}

func TestDecisions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, decided, err := s.Decision(ctx, "monitor", "systemInfo.cpu")
	require.NoError(t, err)
	assert.False(t, decided)

	require.NoError(t, s.SetDecision(ctx, "monitor", "systemInfo.cpu", true))
	require.NoError(t, s.SetDecision(ctx, "monitor", "network", false))
	require.NoError(t, s.SetDecision(ctx, "clock", "network", true))

	granted, decided, err := s.Decision(ctx, "monitor", "systemInfo.cpu")
	require.NoError(t, err)
	assert.True(t, decided)
	assert.True(t, granted)

	all, err := s.Decisions(ctx, "monitor")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"systemInfo.cpu": true, "network": false}, all)

	// flipping one decision leaves the other intact
	require.NoError(t, s.SetDecision(ctx, "monitor", "network", true))
	all, err = s.Decisions(ctx, "monitor")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"systemInfo.cpu": true, "network": true}, all)

	require.NoError(t, s.DeleteDecisions(ctx, "monitor"))
	all, err = s.Decisions(ctx, "monitor")
	require.NoError(t, err)
	assert.Empty(t, all)

	granted, _, err = s.Decision(ctx, "clock", "network")
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	defaults := types.Settings{AutoRestore: true, MaxWidgets: 10}

	got, err := s.Settings(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, got)

	require.NoError(t, s.SaveSettings(ctx, types.Settings{AutoRestore: false, MaxWidgets: 4}))
	got, err = s.Settings(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, types.Settings{AutoRestore: false, MaxWidgets: 4}, got)

	err = s.SaveSettings(ctx, types.Settings{MaxWidgets: 0})
	assert.True(t, errs.Is(err, errs.KindInvalidConfig))
}

func TestKV(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.KVGet(ctx, "notes", "draft")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.KVSet(ctx, "notes", "draft", map[string]interface{}{"text": "hi", "n": 2}))
	require.NoError(t, s.KVSet(ctx, "notes", "count", 3))
	require.NoError(t, s.KVSet(ctx, "other", "draft", "theirs"))

	v, found, err := s.KVGet(ctx, "notes", "draft")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]interface{}{"text": "hi", "n": float64(2)}, v)

	v, _, err = s.KVGet(ctx, "other", "draft")
	require.NoError(t, err)
	assert.Equal(t, "theirs", v)

	keys, err := s.KVKeys(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "draft"}, keys)

	existed, err := s.KVDelete(ctx, "notes", "draft")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.KVDelete(ctx, "notes", "draft")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestKVLimits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	big := make([]byte, MaxValueBytes)
	for i := range big {
		big[i] = 'a'
	}
	err := s.KVSet(ctx, "notes", "big", string(big))
	assert.True(t, errs.Is(err, errs.KindInvalidConfig))

	for i := 0; i < MaxKeysPerWidget; i++ {
		require.NoError(t, s.KVSet(ctx, "notes", fmt.Sprintf("k%03d", i), i))
	}
	err = s.KVSet(ctx, "notes", "overflow", 1)
	assert.True(t, errs.Is(err, errs.KindStorageError))

	// overwriting an existing key is still allowed at the cap
	require.NoError(t, s.KVSet(ctx, "notes", "k000", "updated"))
}
