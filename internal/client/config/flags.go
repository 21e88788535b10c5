package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/recochat/internal/configx"
)

var knownFlags = []string{"-s", "-w", "-u", "-t", "-n", "-d", "-timeout", "-l", "-i"}

// parseFlags overlays cfg with command-line flags. Arguments it does not
// know (e.g. -c) are filtered out first with configx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("recochat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "relay base URL")
	fs.StringVar(&cfg.RealtimeURL, "w", cfg.RealtimeURL, "realtime websocket URL")
	fs.StringVar(&cfg.UserID, "u", cfg.UserID, "user id")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.DisplayName, "n", cfg.DisplayName, "display name")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	timeout := fs.String("timeout", cfg.RequestTimeout.String(), "HTTP request timeout")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(configx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	d, err := time.ParseDuration(*timeout)
	if err != nil {
		return err
	}
	cfg.RequestTimeout = d
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	return nil
}
