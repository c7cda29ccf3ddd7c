package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CC_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8, cfg.World.HorizontalViewDistance)
	assert.True(t, cfg.World.CanRespawnHere)
	assert.Equal(t, 20, cfg.World.GetTickRate())
	assert.Equal(t, 7777, cfg.Server.GetGamePort())
	assert.Equal(t, "data", cfg.Storage.GetDataPath())
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := []byte(`
world:
  seed: 12345
  horizontal_view_distance: 6
  vertical_view_distance: 4
  debug: true
server:
  rest_port: 9090
storage:
  data_path: /tmp/cc-test
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(12345), cfg.World.Seed)
	assert.Equal(t, 6, cfg.World.HorizontalViewDistance)
	assert.Equal(t, 4, cfg.World.VerticalViewDistance)
	assert.True(t, cfg.World.Debug)
	assert.Equal(t, 9090, cfg.Server.GetRESTPort())
	assert.Equal(t, "/tmp/cc-test", cfg.Storage.GetDataPath())
	assert.Equal(t, 2112, cfg.Server.GetMetricsPort(), "Незаданный порт берёт дефолт")
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("CC_REST_PORT", "8500")
	s := ServerConfig{}
	assert.Equal(t, 8500, s.GetRESTPort(), "ENV имеет приоритет над дефолтом")

	s.RESTPort = 8600
	assert.Equal(t, 8600, s.GetRESTPort(), "Конфиг имеет приоритет над ENV")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yml")
	assert.Error(t, err)
}
