package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/recochat/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Empty fields
// keep the current value.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	RealtimeURL    string         `json:"realtime_url"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"access_token"`
	DisplayName    string         `json:"display_name"`
	DatabasePath   string         `json:"database_path"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	LogLevel       string         `json:"log_level"`

	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
}

// parseJSON overlays cfg with the JSON file at path. An empty path is a
// no-op.
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
	set(&cfg.ServerURL, jc.ServerURL)
	set(&cfg.RealtimeURL, jc.RealtimeURL)
	set(&cfg.UserID, jc.UserID)
	set(&cfg.AccessToken, jc.AccessToken)
	set(&cfg.DisplayName, jc.DisplayName)
	set(&cfg.DatabasePath, jc.DatabasePath)
	set(&cfg.LogLevel, jc.LogLevel)
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	return nil
}
