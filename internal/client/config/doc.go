// Package config loads runtime configuration for the recochat client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Optional .env file, then RECOCHAT_* environment variables.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-s string        relay base URL (http://host:port)
//	-w string        realtime websocket URL (default: derived from -s)
//	-u string        user id
//	-t string        access token
//	-n string        display name attached to sent messages
//	-d string        path of the local database
//	-timeout string  HTTP request timeout ("10s")
//	-l string        log level (debug|info|warn|error)
//	-i int           online check interval (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "realtime_url": "ws://127.0.0.1:8080/ws",
//	  "user_id": "…",
//	  "access_token": "…",
//	  "display_name": "Alice",
//	  "database_path": "recochat.db",
//	  "request_timeout": "10s",
//	  "log_level": "info",
//	  "online_check_interval": "3s"
//	}
package config
