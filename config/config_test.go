package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), "", envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":5000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.Capture.Dir != "screenshots" {
		t.Errorf("Capture.Dir = %q", cfg.Capture.Dir)
	}
	if cfg.Capture.NavTimeout != 15*time.Second {
		t.Errorf("NavTimeout = %s", cfg.Capture.NavTimeout)
	}
	if cfg.AI.Model != "gemini-1.5-pro-latest" || cfg.AI.FallbackModel != "gemini-pro" {
		t.Errorf("models = %q / %q", cfg.AI.Model, cfg.AI.FallbackModel)
	}
	if cfg.AI.Temperature != 0.7 || cfg.AI.TopP != 1 || cfg.AI.TopK != 32 || cfg.AI.MaxOutputTokens != 4096 {
		t.Errorf("sampling = %+v", cfg.AI)
	}
	if cfg.AI.APIKey != "" {
		t.Errorf("APIKey should be empty without env, got %q", cfg.AI.APIKey)
	}
	if cfg.S3.Enabled() {
		t.Error("S3 should be disabled by default")
	}
}

func TestLoad_MissingKeyIsNotAnError(t *testing.T) {
	_, err := LoadWith(context.Background(), "", envconfig.MapLookuper(map[string]string{
		"AI_MODEL": "gemini-2.0-flash",
	}))
	if err != nil {
		t.Fatalf("missing GEMINI_API_KEY must not fail load: %v", err)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitelens.yaml")
	yml := `
addr: ":7000"
log_level: debug
capture:
  dir: /var/lib/sitelens/shots
  nav_timeout: 20s
  retention: 72h
ai:
  model: gemini-2.0-flash
  top_k: 40
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWith(context.Background(), path, envconfig.MapLookuper(map[string]string{
		"ADDR":           ":9000",
		"GEMINI_API_KEY": "k-123",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("env should override yaml: Addr = %q", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Capture.Dir != "/var/lib/sitelens/shots" || cfg.Capture.NavTimeout != 20*time.Second {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Capture.Retention != 72*time.Hour {
		t.Errorf("Retention = %s", cfg.Capture.Retention)
	}
	if cfg.AI.Model != "gemini-2.0-flash" || cfg.AI.TopK != 40 {
		t.Errorf("ai = %+v", cfg.AI)
	}
	if cfg.AI.FallbackModel != "gemini-pro" {
		t.Errorf("default should fill unset yaml keys: FallbackModel = %q", cfg.AI.FallbackModel)
	}
	if cfg.AI.APIKey != "k-123" {
		t.Errorf("APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"log level":   {"LOG_LEVEL": "verbose"},
		"duration":    {"NAV_TIMEOUT": "soon"},
		"nav timeout": {"NAV_TIMEOUT": "0s"},
		"s3 creds":    {"S3_ENDPOINT": "minio:9000", "S3_BUCKET": "shots"},
		"rate limit":  {"RATE_LIMIT_PER_MINUTE": "-1"},
	}
	for name, env := range cases {
		if _, err := LoadWith(context.Background(), "", envconfig.MapLookuper(env)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoad_CORSList(t *testing.T) {
	cfg, err := LoadWith(context.Background(), "", envconfig.MapLookuper(map[string]string{
		"CORS_ALLOWED_ORIGINS": "http://localhost:3000,https://app.example.com",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(cfg.AllowedOrigins, "|") != "http://localhost:3000|https://app.example.com" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SITELENS_DOTENV_PROBE=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SITELENS_DOTENV_PROBE", "")
	os.Unsetenv("SITELENS_DOTENV_PROBE")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("SITELENS_DOTENV_PROBE"); got != "from-file" {
		t.Fatalf("SITELENS_DOTENV_PROBE = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}
