package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5001/api", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.False(t, cfg.LegacyAuthHeuristic)
	assert.Equal(t, 50, cfg.NoticeBuffer)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("TICKETING_API_BASE_URL", "https://tickets.example.com/api")
	t.Setenv("TICKETING_HTTP_TIMEOUT", "3s")
	t.Setenv("TICKETING_STORAGE", "redis")
	t.Setenv("TICKETING_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("TICKETING_LEGACY_AUTH_HEURISTIC", "true")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "https://tickets.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, StorageRedis, cfg.Storage)
	assert.True(t, cfg.LegacyAuthHeuristic)
}

func TestLoadDefersValidation(t *testing.T) {
	t.Setenv("TICKETING_STORAGE", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	// A command-line override repairs the environment.
	cfg.Storage = StorageSQLite
	assert.NoError(t, cfg.Validate())
}

func TestWriteTimeout(t *testing.T) {
	cfg := &Config{HTTPTimeout: 10 * time.Second}
	assert.Equal(t, 55*time.Second, cfg.WriteTimeout())
	assert.Greater(t, cfg.WriteTimeout(), 2*cfg.HTTPTimeout)

	cfg.HTTPTimeout = 0
	assert.Zero(t, cfg.WriteTimeout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "relative base url", env: map[string]string{"TICKETING_API_BASE_URL": "/api"}},
		{name: "unknown storage", env: map[string]string{"TICKETING_STORAGE": "etcd"}},
		{name: "postgres without dsn", env: map[string]string{"TICKETING_STORAGE": "postgres"}},
		{name: "redis without url", env: map[string]string{"TICKETING_STORAGE": "redis"}},
		{name: "bad duration", env: map[string]string{"TICKETING_HTTP_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
