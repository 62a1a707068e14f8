// Package config loads runtime configuration for the sync client CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend REST API
//	-t string   bearer token for API authentication
//	-d string   SQLite DSN of the local database
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "http://127.0.0.1:3000",
//	  "auth_token": "secret",
//	  "database_dsn": "homemoney.db",
//	  "request_timeout": "10s",
//	  "sync_timeout": "2m",
//	  "batch_size": 100,
//	  "max_retries": 3,
//	  "upload_workers": 4,
//	  "online_check_interval": "3s",
//	  "sync_interval": "30s"
//	}
//
// Primary API
//
//   - type Config                     — runtime settings for the sync client
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
