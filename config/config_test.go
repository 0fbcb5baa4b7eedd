package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:4003", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "./data/pulse.db", cfg.Database.Path)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.TokenTTL())
	assert.False(t, cfg.Gateway.PresencePush)
	assert.Equal(t, 256, cfg.Gateway.SendBufferSize)
	assert.Equal(t, 10, cfg.RateLimit.LoginAttempts)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.LoginWindow)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("PRESENCE_PUSH", "true")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("JWT_EXPIRY_DAYS", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Gateway.PresencePush)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TokenTTL())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"bad port", map[string]string{"JWT_SECRET": "x", "SERVER_PORT": "http"}},
		{"zero expiry", map[string]string{"JWT_SECRET": "x", "JWT_EXPIRY_DAYS": "0"}},
		{"bad presence flag", map[string]string{"JWT_SECRET": "x", "PRESENCE_PUSH": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
