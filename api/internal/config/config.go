package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MissingAPIKeyMessage is what the UI shows when the credential is absent.
const MissingAPIKeyMessage = "🔑 API-ключ Gemini не найден. Проверьте файл .env с переменной GOOGLE_API_KEY"

// EngineSetupMessage is what the UI shows when the Gemini client cannot be created.
func EngineSetupMessage(err error) string {
	return "Ошибка конфигурации API Gemini: " + err.Error()
}

var ErrMissingAPIKey = errors.New("missing required env GOOGLE_API_KEY")

type Config struct {
	Port string
	Env  string

	GoogleAPIKey string

	VisionModel         string
	VisionFallbackModel string
	TextModel           string
	TextFallbackModel   string

	UploadDir      string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	SessionTTL     time.Duration

	DatabaseURL string
	CacheMaxAge time.Duration

	TelegramBotToken string
	WebhookURL       string
}

// fileConfig mirrors Config for the optional YAML file (CONFIG_FILE).
// Environment variables always win over the file.
type fileConfig struct {
	Port                string `yaml:"port"`
	Env                 string `yaml:"env"`
	VisionModel         string `yaml:"vision_model"`
	VisionFallbackModel string `yaml:"vision_fallback_model"`
	TextModel           string `yaml:"text_model"`
	TextFallbackModel   string `yaml:"text_fallback_model"`
	UploadDir           string `yaml:"upload_dir"`
	MaxUploadBytes      int64  `yaml:"max_upload_bytes"`
	RequestTimeout      string `yaml:"request_timeout"`
	SessionTTL          string `yaml:"session_ttl"`
	CacheMaxAge         string `yaml:"cache_max_age"`
	WebhookURL          string `yaml:"webhook_url"`
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the
// environment. A missing GOOGLE_API_KEY returns the filled config together
// with ErrMissingAPIKey so the caller can render the startup error.
func Load() (*Config, error) {
	loadDotEnv(".env", "api/.env")

	var fc fileConfig
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port: getEnv("PORT", or(fc.Port, "8000")),
		Env:  normalizeEnv(getEnv("ENV", or(fc.Env, "dev"))),

		GoogleAPIKey: strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),

		VisionModel:         getEnv("GEMINI_VISION_MODEL", or(fc.VisionModel, "gemini-1.5-flash")),
		VisionFallbackModel: getEnv("GEMINI_VISION_FALLBACK_MODEL", or(fc.VisionFallbackModel, "gemini-pro-vision")),
		TextModel:           getEnv("GEMINI_TEXT_MODEL", or(fc.TextModel, "gemini-1.5-flash")),
		TextFallbackModel:   getEnv("GEMINI_TEXT_FALLBACK_MODEL", or(fc.TextFallbackModel, "gemini-pro")),

		UploadDir:      getEnv("UPLOAD_DIR", or(fc.UploadDir, os.TempDir())),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", orInt64(fc.MaxUploadBytes, 20<<20)),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", parseDuration(fc.RequestTimeout, 180*time.Second)),
		SessionTTL:     getEnvDuration("SESSION_TTL", parseDuration(fc.SessionTTL, 2*time.Hour)),

		DatabaseURL: resolveDSN(),
		CacheMaxAge: getEnvDuration("CACHE_MAX_AGE", parseDuration(fc.CacheMaxAge, 30*24*time.Hour)),

		TelegramBotToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		WebhookURL:       getEnv("WEBHOOK_URL", fc.WebhookURL),
	}

	if cfg.GoogleAPIKey == "" {
		return cfg, ErrMissingAPIKey
	}
	return cfg, nil
}

// Addr normalizes the listen address.
func (c *Config) Addr() string {
	p := strings.TrimSpace(c.Port)
	if p == "" {
		return ":8000"
	}
	if strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

// resolveDSN prefers DATABASE_URL and otherwise builds a DSN from the
// POSTGRES_*/PG* variables when PGHOST is set. Empty means no cache.
func resolveDSN() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	host := strings.TrimSpace(os.Getenv("PGHOST"))
	if host == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "medvision"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(host, getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "medvision"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		// godotenv.Load never overrides variables that are already set.
		_ = godotenv.Load(p)
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt64(k string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	return parseDuration(os.Getenv(k), def)
}

// parseDuration accepts Go durations ("90s") and bare seconds ("90").
func parseDuration(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func or(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func orInt64(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	default:
		return "dev"
	}
}
