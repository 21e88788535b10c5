package config

import (
	"fmt"

	"github.com/dmitrijs2005/recochat/internal/configx"
)

// Environment variables read by parseEnv.
const (
	EnvServerURL   = "RECOCHAT_SERVER_URL"
	EnvRealtimeURL = "RECOCHAT_REALTIME_URL"
	EnvUserID      = "RECOCHAT_USER_ID"
	EnvToken       = "RECOCHAT_TOKEN"
	EnvName        = "RECOCHAT_NAME"
	EnvDatabase    = "RECOCHAT_DB"
	EnvTimeout     = "RECOCHAT_TIMEOUT"
	EnvLogLevel    = "RECOCHAT_LOG_LEVEL"
	EnvCheck       = "RECOCHAT_CHECK_INTERVAL"
)

func parseEnv(cfg *Config) error {
	configx.EnvString(&cfg.ServerURL, EnvServerURL)
	configx.EnvString(&cfg.RealtimeURL, EnvRealtimeURL)
	configx.EnvString(&cfg.UserID, EnvUserID)
	configx.EnvString(&cfg.AccessToken, EnvToken)
	configx.EnvString(&cfg.DisplayName, EnvName)
	configx.EnvString(&cfg.DatabasePath, EnvDatabase)
	configx.EnvString(&cfg.LogLevel, EnvLogLevel)
	if err := configx.EnvDuration(&cfg.RequestTimeout, EnvTimeout); err != nil {
		return fmt.Errorf("%s: %w", EnvTimeout, err)
	}
	if err := configx.EnvDuration(&cfg.OnlineCheckInterval, EnvCheck); err != nil {
		return fmt.Errorf("%s: %w", EnvCheck, err)
	}
	return nil
}
