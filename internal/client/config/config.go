package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/recochat/internal/configx"
)

// Config holds runtime settings of the chat client.
//
// UserID and AccessToken may stay empty: the CLI then falls back to the
// profile saved by "register".
type Config struct {
	ServerURL      string
	RealtimeURL    string
	UserID         string
	AccessToken    string
	DisplayName    string
	DatabasePath   string
	RequestTimeout time.Duration
	LogLevel       string

	// OnlineCheckInterval is how often the CLI probes the relay and
	// reconnects the realtime feed.
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = "recochat.db"
	c.RequestTimeout = 10 * time.Second
	c.LogLevel = "info"
	c.OnlineCheckInterval = 3 * time.Second
}

// Load builds a Config from defaults, the JSON file, the environment and
// args (without the program name). Later sources take precedence.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, configx.ConfigPath(args)); err != nil {
		return nil, err
	}
	if err := configx.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if cfg.RealtimeURL == "" {
		ws, err := RealtimeURLFor(cfg.ServerURL)
		if err != nil {
			return nil, err
		}
		cfg.RealtimeURL = ws
	}
	return cfg, nil
}

// LoadConfig is Load over os.Args. It panics on invalid configuration.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}

// RealtimeURLFor derives the websocket endpoint of the relay at serverURL.
func RealtimeURLFor(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server url %q", serverURL)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
