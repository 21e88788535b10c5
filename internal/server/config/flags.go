package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/recochat/internal/configx"
)

var knownFlags = []string{"-a", "-storage", "-d", "-s", "-t", "-origins", "-l"}

// parseFlags overlays cfg with command-line flags.
//
// Supported flags:
//
//	-a string        listen address (e.g. ":8080")
//	-storage string  storage backend, memory or postgres
//	-d string        PostgreSQL DSN
//	-s string        JWT HMAC secret key
//	-t int           access token validity, minutes
//	-origins string  comma-separated CORS origins
//	-l string        log level
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "address and port to run server")
	fs.StringVar(&cfg.StorageBackend, "storage", cfg.StorageBackend, "storage backend (memory|postgres)")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	ttl := fs.Int("t", int(cfg.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	origins := fs.String("origins", "", "allowed CORS origins, comma-separated")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(configx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	// Only explicit flags override: minutes would truncate a sub-minute TTL.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.AccessTokenValidityDuration = time.Duration(*ttl) * time.Minute
		case "origins":
			cfg.AllowedOrigins = splitOrigins(*origins)
		}
	})
	return nil
}
