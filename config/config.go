// Package config loads the sitelens configuration.
//
// Precedence, lowest first: built-in defaults, an optional YAML file, a
// .env file in the working directory, the process environment. The Gemini
// credential is read here but never validated: a missing key only surfaces
// when the AI adapter is first used.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the top-level sitelens configuration.
type Config struct {
	Addr           string   `yaml:"addr" env:"ADDR, overwrite, default=:5000"`
	AllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS, overwrite, default=http://localhost:3000"`
	LogLevel       string   `yaml:"log_level" env:"LOG_LEVEL, overwrite, default=info"`

	// RateLimitPerMinute caps POST requests per client IP. 0 disables.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE, overwrite, default=60"`

	// AdminTokenHash is a bcrypt hash. Empty leaves admin routes unmounted.
	AdminTokenHash string `yaml:"admin_token_hash" env:"ADMIN_TOKEN_HASH, overwrite"`

	DisableMCP bool `yaml:"disable_mcp" env:"MCP_DISABLED, overwrite"`

	// LedgerDB is the SQLite path of the capture/generation ledger. Empty disables.
	LedgerDB string `yaml:"ledger_db" env:"LEDGER_DB, overwrite, default=data/sitelens.db"`

	Capture CaptureConfig `yaml:"capture"`
	AI      AIConfig      `yaml:"ai"`
	S3      S3Config      `yaml:"s3"`
}

// CaptureConfig controls the headless browser and the screenshot directory.
type CaptureConfig struct {
	Dir        string        `yaml:"dir" env:"SCREENSHOT_DIR, overwrite, default=screenshots"`
	NavTimeout time.Duration `yaml:"nav_timeout" env:"NAV_TIMEOUT, overwrite, default=15s"`

	// Retention is the age after which artifacts are swept. 0 keeps them forever.
	Retention time.Duration `yaml:"retention" env:"SCREENSHOT_RETENTION, overwrite"`

	BrowserBin     string `yaml:"browser_bin" env:"BROWSER_BIN, overwrite"`
	RemoteURL      string `yaml:"remote_url" env:"BROWSER_REMOTE_URL, overwrite"`
	Stealth        bool   `yaml:"stealth" env:"BROWSER_STEALTH, overwrite"`
	ViewportWidth  int    `yaml:"viewport_width" env:"VIEWPORT_WIDTH, overwrite, default=1280"`
	ViewportHeight int    `yaml:"viewport_height" env:"VIEWPORT_HEIGHT, overwrite, default=720"`

	BlockPrivateTargets bool `yaml:"block_private_targets" env:"BLOCK_PRIVATE_TARGETS, overwrite"`
}

// AIConfig controls the Gemini adapter.
type AIConfig struct {
	APIKey        string `yaml:"api_key" env:"GEMINI_API_KEY, overwrite"`
	BaseURL       string `yaml:"base_url" env:"GEMINI_BASE_URL, overwrite, default=https://generativelanguage.googleapis.com/v1beta"`
	Model         string `yaml:"model" env:"AI_MODEL, overwrite, default=gemini-1.5-pro-latest"`
	FallbackModel string `yaml:"fallback_model" env:"AI_FALLBACK_MODEL, overwrite, default=gemini-pro"`
	ProbeModels   bool   `yaml:"probe_models" env:"AI_PROBE_MODELS, overwrite"`

	Temperature     float64 `yaml:"temperature" env:"AI_TEMPERATURE, overwrite, default=0.7"`
	TopP            float64 `yaml:"top_p" env:"AI_TOP_P, overwrite, default=1"`
	TopK            int     `yaml:"top_k" env:"AI_TOP_K, overwrite, default=32"`
	MaxOutputTokens int     `yaml:"max_output_tokens" env:"AI_MAX_OUTPUT_TOKENS, overwrite, default=4096"`
}

// S3Config enables mirroring of artifacts to an S3-compatible bucket.
// Mirroring is off unless Endpoint and Bucket are both set.
type S3Config struct {
	Endpoint      string `yaml:"endpoint" env:"S3_ENDPOINT, overwrite"`
	Bucket        string `yaml:"bucket" env:"S3_BUCKET, overwrite"`
	AccessKey     string `yaml:"access_key" env:"S3_ACCESS_KEY, overwrite"`
	SecretKey     string `yaml:"secret_key" env:"S3_SECRET_KEY, overwrite"`
	Region        string `yaml:"region" env:"S3_REGION, overwrite, default=us-east-1"`
	Prefix        string `yaml:"prefix" env:"S3_PREFIX, overwrite, default=screenshots/"`
	VirtualHosted bool   `yaml:"virtual_hosted" env:"S3_VIRTUAL_HOSTED, overwrite"`
}

// Enabled reports whether S3 mirroring is configured.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the optional YAML file at path, then the process environment.
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWith(ctx, path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit environment source.
func LoadWith(ctx context.Context, path string, env envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: env,
	}); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Capture.NavTimeout <= 0 {
		return fmt.Errorf("config: nav_timeout must be positive, got %s", c.Capture.NavTimeout)
	}
	if c.Capture.Retention < 0 {
		return fmt.Errorf("config: retention must not be negative")
	}
	if c.Capture.ViewportWidth <= 0 || c.Capture.ViewportHeight <= 0 {
		return fmt.Errorf("config: viewport must be positive, got %dx%d",
			c.Capture.ViewportWidth, c.Capture.ViewportHeight)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: rate_limit_per_minute must not be negative")
	}
	if c.S3.Enabled() && (c.S3.AccessKey == "" || c.S3.SecretKey == "") {
		return fmt.Errorf("config: S3_ACCESS_KEY and S3_SECRET_KEY are required when S3 mirroring is enabled")
	}
	return nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
}

// NewLogger builds the JSON logger used across the service.
func (c *Config) NewLogger() *slog.Logger {
	lvl, _ := ParseLevel(c.LogLevel)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
