package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const clockManifest = `{
  "id": "clock",
  "name": "clock",
  "displayName": "Clock",
  "version": "1.0.0",
  "description": "Shows the time",
  "author": {"name": "Widget Team", "email": "team@example.com"},
  "permissions": {"systemInfo": {"cpu": false, "memory": false}, "network": {"enabled": false, "allowedDomains": []}},
  "sizes": {"default": {"width": 200, "height": 200}, "min": {"width": 150, "height": 150}, "max": {"width": 400, "height": 400}},
  "entryPoint": "index.html"
}`

const weatherYAML = `
id: weather
name: weather
displayName: Weather
version: 2.1.0
permissions:
  network:
    enabled: true
    allowedDomains:
      - api.weather.test
      - "*.cdn.weather.test"
sizes:
  default: {width: 320, height: 240}
entryPoint: dist/index.html
`

func TestParseJSON(t *testing.T) {
	desc, err := Parse([]byte(clockManifest), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "clock", desc.ID)
	assert.Equal(t, "Clock", desc.Label())
	assert.Equal(t, "Widget Team", desc.Author.Name)
	assert.Equal(t, types.Size{Width: 200, Height: 200}, desc.Sizes.Default)
	require.NotNil(t, desc.Sizes.Min)
	assert.Equal(t, 150, desc.Sizes.Min.Width)
	assert.False(t, desc.Permissions.Network.Enabled)
}

func TestParseYAML(t *testing.T) {
	desc, err := Parse([]byte(weatherYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "weather", desc.ID)
	assert.True(t, desc.Permissions.Network.Enabled)
	assert.Equal(t, []string{"api.weather.test", "*.cdn.weather.test"}, desc.Permissions.Network.AllowedDomains)
	assert.Nil(t, desc.Sizes.Max)
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"id": `},
		{"missing id", `{"name":"x","version":"1.0.0","permissions":{},"sizes":{"default":{"width":1,"height":1}},"entryPoint":"i.html"}`},
		{"missing sizes", `{"id":"x","name":"x","version":"1.0.0","permissions":{},"entryPoint":"i.html"}`},
		{"wrong type", `{"id":"x","name":"x","version":"1.0.0","permissions":{"systemInfo":{"cpu":"yes"}},"sizes":{"default":{"width":1,"height":1}},"entryPoint":"i.html"}`},
		{"zero width", `{"id":"x","name":"x","version":"1.0.0","permissions":{},"sizes":{"default":{"width":0,"height":1}},"entryPoint":"i.html"}`},
		{"negative height", `{"id":"x","name":"x","version":"1.0.0","permissions":{},"sizes":{"default":{"width":10,"height":-5}},"entryPoint":"i.html"}`},
		{"fractional width", `{"id":"x","name":"x","version":"1.0.0","permissions":{},"sizes":{"default":{"width":10.5,"height":5}},"entryPoint":"i.html"}`},
		{"unknown permission", `{"id":"x","name":"x","version":"1.0.0","permissions":{"camera":true},"sizes":{"default":{"width":1,"height":1}},"entryPoint":"i.html"}`},
		{"bad id", `{"id":"../etc","name":"x","version":"1.0.0","permissions":{},"sizes":{"default":{"width":1,"height":1}},"entryPoint":"i.html"}`},
		{"bad version", `{"id":"x","name":"x","version":"latest","permissions":{},"sizes":{"default":{"width":1,"height":1}},"entryPoint":"i.html"}`},
		{"min above default", `{"id":"x","name":"x","version":"1.0.0","permissions":{},"sizes":{"default":{"width":100,"height":100},"min":{"width":200,"height":50}},"entryPoint":"i.html"}`},
		{"default above max", `{"id":"x","name":"x","version":"1.0.0","permissions":{},"sizes":{"default":{"width":100,"height":100},"max":{"width":50,"height":500}},"entryPoint":"i.html"}`},
		{"escaping entry", `{"id":"x","name":"x","version":"1.0.0","permissions":{},"sizes":{"default":{"width":1,"height":1}},"entryPoint":"../../secret.html"}`},
		{"url as domain", `{"id":"x","name":"x","version":"1.0.0","permissions":{"network":{"enabled":true,"allowedDomains":["https://a.test/"]}},"sizes":{"default":{"width":1,"height":1}},"entryPoint":"i.html"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindInvalidConfig), "got %v", err)
		})
	}
}

func TestValidateProgrammaticDescriptor(t *testing.T) {
	assert.True(t, errs.Is(Validate(nil), errs.KindInvalidConfig))
	assert.True(t, errs.Is(Validate(&types.WidgetDescriptor{ID: "x"}), errs.KindInvalidConfig))

	ok := &types.WidgetDescriptor{
		ID: "x", Name: "x", Version: "1.0.0", EntryPoint: "index.html",
		Sizes: types.SizeConstraints{Default: types.Size{Width: 10, Height: 10}},
	}
	assert.NoError(t, Validate(ok))
}

func TestLoadChecksScript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ticker")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := `{"id":"ticker","name":"ticker","version":"0.1.0","permissions":{},` +
		`"sizes":{"default":{"width":100,"height":100}},"entryPoint":"index.html","script":"main.js"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644))

	_, err := LoadDir(dir)
	assert.True(t, errs.Is(err, errs.KindInvalidConfig), "missing script file")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte("1"), 0o644))
	desc, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, desc.Dir)
	assert.Equal(t, "main.js", desc.Script)
}
