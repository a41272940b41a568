package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clockManifest = `{
  "id": "clock",
  "name": "clock",
  "displayName": "Clock",
  "version": "1.0.0",
  "permissions": {"systemInfo": {"cpu": false, "memory": false}, "network": {"enabled": false, "allowedDomains": []}},
  "sizes": {"default": {"width": 200, "height": 120}},
  "entryPoint": "index.html"
}`

func writeWidget(t *testing.T, root, name, manifest string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p></p>"), 0o644))
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() {
		scanDir, scanJSON = "", false
		configPath, devMode = "", false
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestScanJSON(t *testing.T) {
	root := t.TempDir()
	writeWidget(t, root, "clock", clockManifest)
	writeWidget(t, root, "broken", `{"id": `)

	stdout, stderr, err := execute(t, "scan", "--json", "--widgets", root)
	require.NoError(t, err)

	var res struct {
		Accepted []struct {
			ID      string `json:"id"`
			Version string `json:"version"`
		} `json:"accepted"`
		Rejected []struct {
			Path   string `json:"path"`
			Reason string `json:"reason"`
		} `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res), stdout)

	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "clock", res.Accepted[0].ID)
	assert.Equal(t, "1.0.0", res.Accepted[0].Version)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, filepath.Join(root, "broken", "manifest.json"), res.Rejected[0].Path)
	assert.NotEmpty(t, res.Rejected[0].Reason)
	assert.Empty(t, stderr, "json mode keeps rejections in the document")
}

func TestScanTable(t *testing.T) {
	root := t.TempDir()
	writeWidget(t, root, "clock", clockManifest)
	writeWidget(t, root, "broken", `{"id": `)

	stdout, stderr, err := execute(t, "scan", "--widgets", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ID")
	assert.Contains(t, stdout, "Clock")
	assert.Contains(t, stderr, "1 manifest(s) rejected")
}
