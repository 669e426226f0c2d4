// Package config loads server and CLI settings.
//
// LOAD ORDER (later wins):
//  1. Defaults()               — values that work for local development
//  2. .env                     — loaded into the process environment by godotenv
//  3. TOML file (optional)     — path from the -config flag or FOODGRAM_CONFIG
//  4. Environment variables    — PORT, DB_PATH, JWT_SECRET, ...
//
// Environment variables win so a container can override a baked-in file
// without editing it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Media backends.
const (
	MediaLocal = "local"
	MediaS3    = "s3"
)

type Config struct {
	Port          int      `toml:"port"`
	DBPath        string   `toml:"db_path"`
	PublicBaseURL string   `toml:"public_base_url"`
	LogLevel      string   `toml:"log_level"`
	CORSOrigins   []string `toml:"cors_origins"`

	Auth       AuthConfig       `toml:"auth"`
	Media      MediaConfig      `toml:"media"`
	Redis      RedisConfig      `toml:"redis"`
	GitHub     GitHubConfig     `toml:"github"`
	Pagination PaginationConfig `toml:"pagination"`
	Cache      CacheConfig      `toml:"cache"`
}

type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
}

type MediaConfig struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	URLPrefix string   `toml:"url_prefix"`
	S3        S3Config `toml:"s3"`
}

// S3Config points at AWS S3 or any S3-compatible store (MinIO, Spaces).
type S3Config struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	PublicURL string `toml:"public_url"`
}

type RedisConfig struct {
	URL string `toml:"url"`
}

type GitHubConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CallbackURL  string `toml:"callback_url"`
}

// Enabled reports whether GitHub sign-in routes should be mounted.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type PaginationConfig struct {
	PageSize    int `toml:"page_size"`
	MaxPageSize int `toml:"max_page_size"`
}

type CacheConfig struct {
	IngredientSize int      `toml:"ingredient_size"`
	IngredientTTL  Duration `toml:"ingredient_ttl"`
}

// Duration lets TOML files spell durations as "24h" or "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a configuration suitable for local development, minus
// the JWT secret which must always be supplied.
func Defaults() Config {
	return Config{
		Port:          8080,
		DBPath:        "data/foodgram.db",
		PublicBaseURL: "http://localhost:8080",
		LogLevel:      "info",
		Auth: AuthConfig{
			TokenTTL: Duration{24 * time.Hour},
		},
		Media: MediaConfig{
			Backend:   MediaLocal,
			Dir:       "media",
			URLPrefix: "/media/",
		},
		Pagination: PaginationConfig{
			PageSize:    6,
			MaxPageSize: 100,
		},
		Cache: CacheConfig{
			IngredientSize: 256,
			IngredientTTL:  Duration{5 * time.Minute},
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// FOODGRAM_CONFIG is consulted; a missing file at an explicit path is an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("config: loading .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("FOODGRAM_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg with every variable that is set.
func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer, got %q", key, v)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *Duration) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		return nil
	}

	str("DB_PATH", &cfg.DBPath)
	str("PUBLIC_BASE_URL", &cfg.PublicBaseURL)
	str("LOG_LEVEL", &cfg.LogLevel)
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}

	str("JWT_SECRET", &cfg.Auth.JWTSecret)

	str("MEDIA_BACKEND", &cfg.Media.Backend)
	str("MEDIA_DIR", &cfg.Media.Dir)
	str("MEDIA_URL_PREFIX", &cfg.Media.URLPrefix)
	str("S3_BUCKET", &cfg.Media.S3.Bucket)
	str("S3_REGION", &cfg.Media.S3.Region)
	str("S3_ENDPOINT", &cfg.Media.S3.Endpoint)
	str("S3_ACCESS_KEY", &cfg.Media.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.Media.S3.SecretKey)
	str("S3_PUBLIC_URL", &cfg.Media.S3.PublicURL)

	str("REDIS_URL", &cfg.Redis.URL)

	str("GITHUB_CLIENT_ID", &cfg.GitHub.ClientID)
	str("GITHUB_CLIENT_SECRET", &cfg.GitHub.ClientSecret)
	str("GITHUB_CALLBACK_URL", &cfg.GitHub.CallbackURL)

	for _, step := range []error{
		num("PORT", &cfg.Port),
		num("PAGE_SIZE", &cfg.Pagination.PageSize),
		num("MAX_PAGE_SIZE", &cfg.Pagination.MaxPageSize),
		num("INGREDIENT_CACHE_SIZE", &cfg.Cache.IngredientSize),
		dur("TOKEN_TTL", &cfg.Auth.TokenTTL),
		dur("INGREDIENT_CACHE_TTL", &cfg.Cache.IngredientTTL),
	} {
		if step != nil {
			return step
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first setting the server cannot run with.
func (c Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.Auth.TokenTTL.Duration <= 0 {
		return errors.New("config: token TTL must be positive")
	}
	if c.Pagination.PageSize < 1 || c.Pagination.MaxPageSize < c.Pagination.PageSize {
		return fmt.Errorf("config: invalid page sizes %d/%d",
			c.Pagination.PageSize, c.Pagination.MaxPageSize)
	}
	switch c.Media.Backend {
	case MediaLocal:
		if c.Media.Dir == "" {
			return errors.New("config: MEDIA_DIR is required for the local media backend")
		}
	case MediaS3:
		if c.Media.S3.Bucket == "" {
			return errors.New("config: S3_BUCKET is required for the s3 media backend")
		}
	default:
		return fmt.Errorf("config: unknown media backend %q", c.Media.Backend)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	return level, nil
}
