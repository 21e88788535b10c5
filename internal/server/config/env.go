package config

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/recochat/internal/configx"
)

// Environment variables read by parseEnv.
const (
	EnvListenAddr = "RELAY_ADDR"
	EnvStorage    = "RELAY_STORAGE"
	EnvDSN        = "RELAY_DATABASE_DSN"
	EnvSecret     = "RELAY_SECRET_KEY"
	EnvTokenTTL   = "RELAY_TOKEN_TTL"
	EnvOrigins    = "RELAY_CORS_ORIGINS"
	EnvLogLevel   = "RELAY_LOG_LEVEL"
)

func parseEnv(cfg *Config) error {
	configx.EnvString(&cfg.ListenAddr, EnvListenAddr)
	configx.EnvString(&cfg.StorageBackend, EnvStorage)
	configx.EnvString(&cfg.DatabaseDSN, EnvDSN)
	configx.EnvString(&cfg.SecretKey, EnvSecret)
	configx.EnvString(&cfg.LogLevel, EnvLogLevel)
	if v := os.Getenv(EnvOrigins); v != "" {
		cfg.AllowedOrigins = splitOrigins(v)
	}
	if err := configx.EnvDuration(&cfg.AccessTokenValidityDuration, EnvTokenTTL); err != nil {
		return fmt.Errorf("%s: %w", EnvTokenTTL, err)
	}
	return nil
}
