package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/config"
)

const notesManifest = `{
  "id": "notes",
  "name": "notes",
  "displayName": "Notes",
  "version": "1.0.0",
  "permissions": {"systemInfo": {"cpu": false, "memory": false}, "network": {"enabled": false, "allowedDomains": []}},
  "sizes": {"default": {"width": 240, "height": 180}},
  "entryPoint": "index.html"
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	widgets := filepath.Join(root, "widgets", "notes")
	require.NoError(t, os.MkdirAll(widgets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(widgets, "manifest.json"), []byte(notesManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(widgets, "index.html"), []byte("<p>notes</p>"), 0o644))

	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	cfg.Widgets.Dir = filepath.Join(root, "widgets")
	cfg.State.DBPath = filepath.Join(root, "state.db")
	return cfg
}

func start(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := NewServer(cfg, nil, "test")
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	return srv
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestLaunchRequestAndRestore(t *testing.T) {
	cfg := testConfig(t)
	srv := start(t, cfg)
	h := srv.Handler()

	code, env := call(t, h, http.MethodPost, "/widgets/notes/launch", "")
	require.Equal(t, http.StatusOK, code)
	var inst struct {
		InstanceID string `json:"instance_id"`
		WidgetID   string `json:"widget_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inst))
	assert.Equal(t, "notes", inst.WidgetID)

	code, env = call(t, h, http.MethodPost, "/instances/"+inst.InstanceID+"/request",
		`{"capability": "storage.set", "args": {"key": "draft", "value": "hello"}}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	code, env = call(t, h, http.MethodPost, "/instances/"+inst.InstanceID+"/request",
		`{"capability": "storage.get", "args": {"key": "draft"}}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	assert.JSONEq(t, `{"key": "draft", "value": "hello", "found": true}`, string(env.Data))

	// undeclared permission is refused without a prompt
	code, env = call(t, h, http.MethodPost, "/instances/"+inst.InstanceID+"/request",
		`{"capability": "system.getCPU"}`)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PermissionDenied", env.Error.Kind)

	require.NoError(t, srv.Close())

	// the instance was running at shutdown, so the next start restores it
	srv = start(t, cfg)
	t.Cleanup(func() { srv.Close() })

	code, env = call(t, srv.Handler(), http.MethodGet, "/instances", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"widget_id":"notes"`)
}

func TestErrorsUseEnvelope(t *testing.T) {
	srv := start(t, testConfig(t))
	t.Cleanup(func() { srv.Close() })
	h := srv.Handler()

	code, env := call(t, h, http.MethodPost, "/widgets/missing/launch", "")
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "InvalidConfig", env.Error.Kind)

	code, env = call(t, h, http.MethodGet, "/instances/inst_nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NotFound", env.Error.Kind)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := start(t, testConfig(t))
	t.Cleanup(func() { srv.Close() })

	call(t, srv.Handler(), http.MethodPost, "/widgets/notes/launch", "")

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "launches_total")
}
