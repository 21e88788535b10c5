package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/recochat/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// accept both "1h" strings and integer nanoseconds; empty fields keep the
// current value.
type JsonConfig struct {
	ListenAddr                  string         `json:"listen_addr"`
	StorageBackend              string         `json:"storage_backend"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	AllowedOrigins              []string       `json:"allowed_origins"`
	LogLevel                    string         `json:"log_level"`
}

func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.ListenAddr, jc.ListenAddr)
	set(&cfg.StorageBackend, jc.StorageBackend)
	set(&cfg.DatabaseDSN, jc.DatabaseDSN)
	set(&cfg.SecretKey, jc.SecretKey)
	set(&cfg.LogLevel, jc.LogLevel)
	if jc.AccessTokenValidityDuration.Duration > 0 {
		cfg.AccessTokenValidityDuration = jc.AccessTokenValidityDuration.Duration
	}
	if len(jc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = jc.AllowedOrigins
	}
	return nil
}
