package config

import (
	"fmt"
	"os"
)

// Config is the process configuration, read from the environment.
type Config struct {
	ListenAddr     string
	DBURL          string
	RedisAddr      string
	ProviderURL    string
	ProviderAPIKey string
	// SinkAccount is the platform account credited by every offramp entry.
	SinkAccount string
	// Currency is the single base currency of the ledger.
	Currency string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
		DBURL:          os.Getenv("DB_URL"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		ProviderURL:    os.Getenv("PROVIDER_URL"),
		ProviderAPIKey: os.Getenv("PROVIDER_API_KEY"),
		SinkAccount:    os.Getenv("PLATFORM_SINK_ACCOUNT"),
		Currency:       getenv("CURRENCY", "usd"),
	}

	if cfg.DBURL == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}
	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("PROVIDER_URL is required")
	}
	if cfg.SinkAccount == "" {
		return nil, fmt.Errorf("PLATFORM_SINK_ACCOUNT is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
