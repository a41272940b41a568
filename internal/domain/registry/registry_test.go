package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

func writeWidget(t *testing.T, root, dir, name, content string) {
	t.Helper()
	p := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(p, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p, name), []byte(content), 0o644))
}

func TestScanSkipsMalformed(t *testing.T) {
	root := t.TempDir()
	writeWidget(t, root, "clock", "manifest.json", clockManifest)
	writeWidget(t, root, "weather", "manifest.yaml", weatherYAML)
	writeWidget(t, root, "broken", "manifest.json", `{"id": "broken"}`)
	writeWidget(t, root, "notes", "README.md", "no manifest here")
	writeWidget(t, root, "deep/nested", "manifest.json", clockManifest)
	writeWidget(t, root, ".", "manifest.json", clockManifest)

	res, err := Scan(context.Background(), root)
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Accepted))
	for _, d := range res.Accepted {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{"clock", "weather"}, ids)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Path, "broken")
}

func TestScanDuplicateIDs(t *testing.T) {
	root := t.TempDir()
	writeWidget(t, root, "a-clock", "manifest.json", clockManifest)
	writeWidget(t, root, "b-clock", "manifest.json", clockManifest)

	res, err := Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Contains(t, res.Accepted[0].Dir, "a-clock")
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reason, "duplicate")
}

func TestScanMissingDirectory(t *testing.T) {
	res, err := Scan(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
}

func TestRegistryRescanAndCopies(t *testing.T) {
	root := t.TempDir()
	writeWidget(t, root, "clock", "manifest.json", clockManifest)
	writeWidget(t, root, "broken", "manifest.json", `nope`)

	r := New(root, nil, nil)
	_, err := r.Rescan(context.Background())
	require.NoError(t, err)

	assert.True(t, r.Has("clock"))
	assert.Equal(t, types.RegistryStats{Widgets: 1, Rejected: 1}, r.Stats())

	d, err := r.Get("clock")
	require.NoError(t, err)
	d.Sizes.Min.Width = 1
	d.Name = "mutated"

	again, err := r.Get("clock")
	require.NoError(t, err)
	assert.Equal(t, 150, again.Sizes.Min.Width)
	assert.Equal(t, "clock", again.Name)

	_, err = r.Get("missing")
	assert.True(t, errs.Is(err, errs.KindNotFound))

	// widgets removed from disk disappear on the next rescan
	require.NoError(t, os.RemoveAll(filepath.Join(root, "clock")))
	_, err = r.Rescan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, r.List())
}

func TestRegistryRegister(t *testing.T) {
	r := New(t.TempDir(), nil, nil)

	err := r.Register(&types.WidgetDescriptor{ID: "Bad ID"})
	assert.True(t, errs.Is(err, errs.KindInvalidConfig))

	require.NoError(t, r.Register(&types.WidgetDescriptor{
		ID: "b", Name: "b", Version: "1.0.0", EntryPoint: "i.html",
		Sizes: types.SizeConstraints{Default: types.Size{Width: 1, Height: 1}},
	}))
	require.NoError(t, r.Register(&types.WidgetDescriptor{
		ID: "a", Name: "a", Version: "1.0.0", EntryPoint: "i.html",
		Sizes: types.SizeConstraints{Default: types.Size{Width: 1, Height: 1}},
	}))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
}

type dirInstaller struct{ dir string }

func (i dirInstaller) Install(context.Context, string) (string, error) { return i.dir, nil }

func TestRegistryInstall(t *testing.T) {
	root := t.TempDir()
	writeWidget(t, root, "weather", "manifest.yml", weatherYAML)

	r := New(root, nil, nil)
	desc, err := r.Install(context.Background(), dirInstaller{dir: filepath.Join(root, "weather")}, "catalog://weather")
	require.NoError(t, err)
	assert.Equal(t, "weather", desc.ID)
	assert.True(t, r.Has("weather"))

	_, err = r.Install(context.Background(), dirInstaller{dir: t.TempDir()}, "catalog://empty")
	assert.True(t, errs.Is(err, errs.KindInvalidConfig))
}
