package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commonwf.yaml")
	content := `log_level: debug
store:
  kind: redis
  redis:
    addr: redis:6379
    prefix: "acwf:"
output: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "acwf:", cfg.Store.Redis.Prefix)
	assert.Equal(t, OutputJSON, cfg.Output)
	assert.Equal(t, ":8080", cfg.Serve.Addr, "unset keys keep their default")
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("COMMONWF_SERVE_ADDR", ":9090")
	t.Setenv("COMMONWF_STORE_REDIS_ADDR", "cache:6380")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Serve.Addr)
	assert.Equal(t, "cache:6380", cfg.Store.Redis.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commonwf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: sqlite\n"), 0644))

	_, err := Load(viper.New(), path)
	assert.ErrorContains(t, err, `invalid store.kind "sqlite"`)

	_, err = Load(viper.New(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")
}
