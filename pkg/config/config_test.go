package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWatch(t *testing.T) {
	path := writeConfig(t, `
collector: logs.internal:6433
dataDir: /var/lib/theia-watcher
tags: [prod, web]
files:
  - path: /var/log/nginx/access.log
    alias: nginx-access
  - path: /var/log/nginx/error.log
`)

	cfg, err := LoadWatch(path)
	require.NoError(t, err)
	assert.Equal(t, "logs.internal:6433", cfg.Collector)
	assert.Equal(t, []string{"prod", "web"}, cfg.Tags)
	require.Len(t, cfg.Files, 2)
	assert.Equal(t, "nginx-access", cfg.Files[0].Alias)
	assert.Equal(t, "/var/log/nginx/error.log", cfg.Files[1].Path)
	assert.Empty(t, cfg.Files[1].Alias)
}

func TestLoadWatchValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing collector", content: "files:\n  - path: /var/log/app.log\n"},
		{name: "no files", content: "collector: host:6433\n"},
		{name: "file without path", content: "collector: host:6433\nfiles:\n  - alias: nameless\n"},
		{name: "not yaml", content: "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWatch(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadWatchMissingFile(t *testing.T) {
	_, err := LoadWatch(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
