package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-test"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FOODGRAM_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 6, cfg.Pagination.PageSize)
	assert.Equal(t, MediaLocal, cfg.Media.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Duration)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "foodgram.toml", `
port = 9000
db_path = "/var/lib/foodgram.db"
cors_origins = ["http://localhost:3000"]

[auth]
jwt_secret = "from-file-secret-value"
token_ttl = "2h"

[media]
backend = "s3"

[media.s3]
bucket = "foodgram-media"
region = "eu-central-1"
`)
	t.Setenv("PORT", "9100")
	t.Setenv("INGREDIENT_CACHE_TTL", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "env overrides file")
	assert.Equal(t, "/var/lib/foodgram.db", cfg.DBPath)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "from-file-secret-value", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL.Duration)
	assert.Equal(t, MediaS3, cfg.Media.Backend)
	assert.Equal(t, "foodgram-media", cfg.Media.S3.Bucket)
	assert.Equal(t, 30*time.Second, cfg.Cache.IngredientTTL.Duration)
	// Untouched values keep their defaults.
	assert.Equal(t, "/media/", cfg.Media.URLPrefix)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "c.toml", "log_level = \"debug\"\n")
	t.Setenv("FOODGRAM_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})

	t.Run("bad toml", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.toml", "port = ["))
		assert.Error(t, err)
	})

	t.Run("bad port env", func(t *testing.T) {
		t.Setenv("FOODGRAM_CONFIG", "")
		t.Setenv("PORT", "eighty")
		_, err := Load("")
		assert.ErrorContains(t, err, "PORT")
	})

	t.Run("bad duration env", func(t *testing.T) {
		t.Setenv("FOODGRAM_CONFIG", "")
		t.Setenv("TOKEN_TTL", "forever")
		_, err := Load("")
		assert.ErrorContains(t, err, "TOKEN_TTL")
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Auth.JWTSecret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(*Config) {}, false},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, true},
		{"unknown backend", func(c *Config) { c.Media.Backend = "ftp" }, true},
		{"s3 without bucket", func(c *Config) { c.Media.Backend = MediaS3 }, true},
		{"s3 with bucket", func(c *Config) {
			c.Media.Backend = MediaS3
			c.Media.S3.Bucket = "b"
		}, false},
		{"zero page size", func(c *Config) { c.Pagination.PageSize = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "warn"
	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
