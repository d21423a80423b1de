package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestFromEnv_Values(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		EnvLogLevel:     " DEBUG ",
		EnvLogFile:      "/tmp/hough.log",
		EnvWorkers:      "4",
		EnvMaxImageSide: "8192",
	}))
	require.NoError(t, err)
	assert.Equal(t, Config{
		LogLevel:     "debug",
		LogFile:      "/tmp/hough.log",
		Workers:      4,
		MaxImageSide: 8192,
	}, *cfg)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown level", map[string]string{EnvLogLevel: "verbose"}},
		{"non-numeric workers", map[string]string{EnvWorkers: "many"}},
		{"negative workers", map[string]string{EnvWorkers: "-2"}},
		{"side at coordinate limit", map[string]string{EnvMaxImageSide: "65535"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte(EnvWorkers+"=3\n"), 0o600))

	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvWorkers, "")
	require.NoError(t, os.Unsetenv(EnvWorkers))

	cfg, err := Load(filepath.Join(dir, "missing.env"), path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Workers)
}
