package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	GRPCAddr    string
	MetricsAddr string // empty disables the /metrics listener

	// Zone of the naive calendar: "today", "now" and capacity slot dates.
	TimeZone string
	Location *time.Location

	RedisAddr     string // empty disables the availability cache
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	LogLevel  string
	LogFormat string
}

// LoadDotEnv reads .env when present. Real environment variables win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		GRPCAddr:      getEnv("GRPC_ADDR", ":50051"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		TimeZone:      getEnv("APP_TIMEZONE", "UTC"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      time.Duration(getEnvInt("AVAILABILITY_CACHE_TTL_SEC", 30)) * time.Second,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.TimeZone, err)
	}
	cfg.Location = loc

	if cfg.GRPCAddr == "" {
		return nil, fmt.Errorf("invalid app config: GRPC_ADDR must not be empty")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return cfg, nil
}
