package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, "userboard.yaml", `
server:
  port: 9000
database:
  driver: postgres
  dsn: postgres://board@localhost/board
auth:
  access_ttl: 5m
cors:
  allowed_origins:
    - http://a.example
`)
	t.Setenv("PORT", "9100")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://b.example, http://c.example")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, []string{"http://b.example", "http://c.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "0.0.0.0:9100", cfg.Addr())
}

func TestLoadEnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "REDIS_ADDR=localhost:6390\nLOG_LEVEL=debug\n")
	t.Cleanup(func() {
		os.Unsetenv("REDIS_ADDR")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6390", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingEnvFileIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, false},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, false},
		{"production default secret", func(c *Config) { c.Environment = "production" }, false},
		{"production short secret", func(c *Config) {
			c.Environment = "production"
			c.Auth.Secret = "short"
		}, false},
		{"production strong secret", func(c *Config) {
			c.Environment = "production"
			c.Auth.Secret = "0123456789abcdef0123456789abcdef"
		}, true},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("Validate() expected error")
			}
		})
	}
}

func TestLoadWithOverridesBeforeValidation(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load("", "")
	require.Error(t, err)

	cfg, err := LoadWithOverrides("", "", Overrides{Driver: " Memory ", Port: 4000, LogLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = LoadWithOverrides("", "", Overrides{Driver: "Postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")
}
