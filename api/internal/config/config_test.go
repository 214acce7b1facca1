package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "ENV", "GOOGLE_API_KEY", "CONFIG_FILE",
		"GEMINI_VISION_MODEL", "GEMINI_VISION_FALLBACK_MODEL",
		"GEMINI_TEXT_MODEL", "GEMINI_TEXT_FALLBACK_MODEL",
		"UPLOAD_DIR", "MAX_UPLOAD_BYTES", "REQUEST_TIMEOUT", "SESSION_TTL",
		"DATABASE_URL", "CACHE_MAX_AGE", "TELEGRAM_BOT_TOKEN", "WEBHOOK_URL",
		"PGHOST", "PGPORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VisionModel != "gemini-1.5-flash" || cfg.VisionFallbackModel != "gemini-pro-vision" {
		t.Fatalf("unexpected vision models: %s / %s", cfg.VisionModel, cfg.VisionFallbackModel)
	}
	if cfg.TextModel != "gemini-1.5-flash" || cfg.TextFallbackModel != "gemini-pro" {
		t.Fatalf("unexpected text models: %s / %s", cfg.TextModel, cfg.TextFallbackModel)
	}
	if cfg.RequestTimeout != 180*time.Second {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.MaxUploadBytes != 20<<20 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.Addr() != ":8000" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if cfg == nil {
		t.Fatalf("expected config to be returned alongside the error")
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "medvision.yaml")
	yml := "port: \"9090\"\nvision_model: gemini-2.0-flash\ntext_fallback_model: gemini-1.0-pro\nrequest_timeout: 45s\nsession_ttl: \"600\"\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GOOGLE_API_KEY", "key")
	t.Setenv("GEMINI_VISION_MODEL", "gemini-2.5-flash")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.VisionModel != "gemini-2.5-flash" {
		t.Fatalf("env must win over file, got %q", cfg.VisionModel)
	}
	if cfg.TextFallbackModel != "gemini-1.0-pro" {
		t.Fatalf("TextFallbackModel = %q", cfg.TextFallbackModel)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.SessionTTL != 600*time.Second {
		t.Fatalf("SessionTTL = %v", cfg.SessionTTL)
	}
}

func TestLoadBadConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("GOOGLE_API_KEY", "key")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":      time.Minute,
		"2m":    2 * time.Minute,
		"30":    30 * time.Second,
		"-5":    time.Minute,
		"bogus": time.Minute,
	}
	for in, want := range cases {
		if got := parseDuration(in, time.Minute); got != want {
			t.Errorf("parseDuration(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAddr(t *testing.T) {
	for port, want := range map[string]string{
		"":             ":8000",
		"8080":         ":8080",
		":9000":        ":9000",
		"0.0.0.0:8081": "0.0.0.0:8081",
	} {
		c := &Config{Port: port}
		if got := c.Addr(); got != want {
			t.Errorf("Addr(%q) = %q, want %q", port, got, want)
		}
	}
}

func TestResolveDSN(t *testing.T) {
	clearEnv(t)
	if got := resolveDSN(); got != "" {
		t.Fatalf("no database configured, got %q", got)
	}

	t.Setenv("PGHOST", "db")
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	if got, want := resolveDSN(), "postgres://medvision:s3cret@db:5432/medvision?sslmode=disable"; got != want {
		t.Fatalf("resolveDSN() = %q, want %q", got, want)
	}

	t.Setenv("DATABASE_URL", "postgres://u@h/x")
	if got := resolveDSN(); got != "postgres://u@h/x" {
		t.Fatalf("DATABASE_URL must win, got %q", got)
	}
}
