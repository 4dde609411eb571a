package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	LogDir       string
	Security     SecurityConfig
}

// SecurityConfig tunes the admission-control engine and its surrounding
// middleware. Zero values fall back to engine defaults.
type SecurityConfig struct {
	// JWTSecret signs session tokens. Generated at boot when empty.
	JWTSecret string
	// MaxPayloadBytes is the request size above which adaptive limits halve
	// and the WAF adds oversize risk.
	MaxPayloadBytes int64
	// SweepInterval is the maintenance sweep period.
	SweepInterval time.Duration
	// NotifyURLs holds shoutrrr destinations for block notifications.
	NotifyURLs []string
	// BotDetection toggles user-agent scanning in the WAF.
	BotDetection bool
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:  getEnv("BASTION_ENV", "development"),
		HTTPPort:     getEnv("BASTION_HTTP_PORT", "8080"),
		DatabasePath: getEnv("BASTION_DB_PATH", filepath.Join("data", "bastion.db")),
		LogDir:       getEnv("BASTION_LOG_DIR", filepath.Join("data", "logs")),
		Security: SecurityConfig{
			JWTSecret:       getEnv("BASTION_JWT_SECRET", ""),
			MaxPayloadBytes: getEnvInt64("BASTION_MAX_PAYLOAD_BYTES", 1<<20),
			SweepInterval:   getEnvDuration("BASTION_SWEEP_INTERVAL", 5*time.Minute),
			NotifyURLs:      getEnvList("BASTION_NOTIFY_URLS"),
			BotDetection:    getEnvBool("BASTION_BOT_DETECTION", true),
		},
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
